package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Context carries the resolved clinic identity through a request. It
// replaces ambient process-global state: every consumer receives it
// explicitly, so interleaved requests for different clinics cannot
// observe each other's identifiers.
type Context struct {
	ClinicID     uuid.UUID
	Subdomain    string
	DatabaseName string
	Mode         ConnectionMode
}

type contextKey struct{}

// GinContextKey is where guard middleware stores the *Context in a gin
// request context.
const GinContextKey = "clinic_context"

// WithContext attaches a clinic context to a context.Context
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext extracts the clinic context, if present
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok
}

// ContextFor builds a request context from a cached descriptor
func ContextFor(desc *Descriptor) *Context {
	return &Context{
		ClinicID:     desc.ClinicID,
		Subdomain:    desc.Subdomain,
		DatabaseName: desc.DatabaseName,
		Mode:         desc.Mode,
	}
}
