package tenant

import "gorm.io/gorm"

// TableScope classifies a table as platform-wide or tenant-scoped.
// Classification is a typed, static property of the table: a table not
// listed as central is tenant-scoped, and central tables route to the
// administrative store no matter which clinic is asking.
type TableScope int

const (
	// ScopeTenant tables hold one clinic's data.
	ScopeTenant TableScope = iota
	// ScopeCentral tables belong to the platform operator.
	ScopeCentral
)

// centralTables is the fixed set of administrative tables. Everything the
// platform itself owns lives here; clinic data never does.
var centralTables = map[string]struct{}{
	"clinicas_central":           {},
	"planos_sistema":             {},
	"repasses_medicos":           {},
	"monitoramento_conexoes":     {},
	"admin_logs_acesso":          {},
	"admin_configuracoes":        {},
	"admin_sessoes":              {},
	"provisionamentos_pendentes": {},
}

// ScopeOf returns the scope of a table name
func ScopeOf(table string) TableScope {
	if _, ok := centralTables[table]; ok {
		return ScopeCentral
	}
	return ScopeTenant
}

// Router selects the database handle a table operation must run against.
// Tenant identity travels in the descriptor argument; the router keeps no
// ambient per-request state.
type Router struct {
	central *gorm.DB
	model   *gorm.DB
}

// NewRouter creates a router over the central and shared model stores
func NewRouter(central, model *gorm.DB) *Router {
	return &Router{central: central, model: model}
}

// For returns the handle for a table under the given clinic connection.
// Central tables always go to the administrative store. Tenant tables go
// to the clinic's isolated database when one is connected, otherwise to
// the shared model store.
func (r *Router) For(table string, desc *Descriptor) *gorm.DB {
	if ScopeOf(table) == ScopeCentral {
		return r.central
	}
	if desc != nil && desc.Provisioned && desc.Mode == ModeIsolated && desc.DB != nil {
		return desc.DB
	}
	return r.model
}

// Central returns the administrative store handle
func (r *Router) Central() *gorm.DB {
	return r.central
}

// Model returns the shared model store handle
func (r *Router) Model() *gorm.DB {
	return r.model
}
