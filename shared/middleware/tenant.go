package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinigo/clinic-platform/shared/tenant"
	"github.com/clinigo/clinic-platform/shared/utils"
)

const descriptorKey = "clinic_descriptor"

// ConnectionSource resolves a clinic key to a connection descriptor;
// satisfied by *tenant.Cache
type ConnectionSource interface {
	Get(ctx context.Context, key string) (*tenant.Descriptor, error)
}

// TenantGuard blocks requests that carry no valid clinic context. It
// resolves the request host to a clinic, redirects the bare base domain
// to the default clinic, and stores the resolved identity explicitly in
// the request context.
type TenantGuard struct {
	resolver *tenant.Resolver
	conns    ConnectionSource
	log      *logrus.Entry
}

// NewTenantGuard creates the guard middleware
func NewTenantGuard(resolver *tenant.Resolver, conns ConnectionSource) *TenantGuard {
	return &TenantGuard{
		resolver: resolver,
		conns:    conns,
		log:      logrus.WithField("component", "tenant-guard"),
	}
}

// Middleware resolves and enforces the clinic context for every request
func (g *TenantGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := g.resolver.Resolve(c.Request.Host)

		if res.Redirect {
			c.Redirect(http.StatusFound, g.defaultClinicURL(c)+c.Request.URL.RequestURI())
			c.Abort()
			return
		}

		desc, err := g.conns.Get(c.Request.Context(), res.Key)
		if err != nil {
			g.reject(c, res.Key, err)
			return
		}

		tc := tenant.ContextFor(desc)
		c.Set(tenant.GinContextKey, tc)
		c.Set(descriptorKey, desc)
		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))

		c.Next()
	}
}

// reject maps resolution errors to user-visible blocking states
func (g *TenantGuard) reject(c *gin.Context, key string, err error) {
	switch {
	case errors.Is(err, tenant.ErrClinicSuspended):
		utils.ForbiddenResponse(c, "This clinic is suspended. Contact support to reactivate it.")
	case errors.Is(err, tenant.ErrClinicNotFound), errors.Is(err, tenant.ErrClinicCancelled):
		c.JSON(http.StatusNotFound, utils.APIResponse{
			Success: false,
			Error:   "Access restricted: no active clinic at this address",
			Data:    gin.H{"default_url": g.defaultClinicURL(c)},
		})
	default:
		g.log.WithError(err).WithField("clinic", key).Error("Tenant resolution failed")
		utils.ServiceUnavailableResponse(c, "Clinic lookup is temporarily unavailable")
	}
	c.Abort()
}

// defaultClinicURL builds the default clinic's address for redirects and hints
func (g *TenantGuard) defaultClinicURL(c *gin.Context) string {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s.%s", scheme, g.resolver.DefaultKey(), g.resolver.BaseDomain())
}

// GetClinicContext returns the clinic context stored by the guard
func GetClinicContext(c *gin.Context) (*tenant.Context, bool) {
	v, ok := c.Get(tenant.GinContextKey)
	if !ok {
		return nil, false
	}
	tc, ok := v.(*tenant.Context)
	return tc, ok
}

// GetDescriptor returns the connection descriptor stored by the guard
func GetDescriptor(c *gin.Context) (*tenant.Descriptor, bool) {
	v, ok := c.Get(descriptorKey)
	if !ok {
		return nil, false
	}
	desc, ok := v.(*tenant.Descriptor)
	return desc, ok
}
