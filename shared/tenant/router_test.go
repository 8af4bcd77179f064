package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestScopeOf(t *testing.T) {
	central := []string{
		"clinicas_central",
		"planos_sistema",
		"repasses_medicos",
		"monitoramento_conexoes",
		"admin_logs_acesso",
		"admin_configuracoes",
		"admin_sessoes",
		"provisionamentos_pendentes",
	}
	for _, table := range central {
		assert.Equal(t, ScopeCentral, ScopeOf(table), "table %q", table)
	}

	for _, table := range []string{"pacientes", "agendamentos", "prescricoes", "repasses"} {
		assert.Equal(t, ScopeTenant, ScopeOf(table), "table %q", table)
	}
}

func TestRouter_CentralTablesAlwaysUseCentralStore(t *testing.T) {
	centralDB := &gorm.DB{}
	modelDB := &gorm.DB{}
	tenantDB := &gorm.DB{}
	r := NewRouter(centralDB, modelDB)

	// Even a fully provisioned tenant connection never reaches a central table.
	desc := &Descriptor{Provisioned: true, Mode: ModeIsolated, DB: tenantDB, Live: true}

	assert.Same(t, centralDB, r.For("clinicas_central", desc))
	assert.Same(t, centralDB, r.For("admin_logs_acesso", desc))
	assert.Same(t, centralDB, r.For("repasses_medicos", nil))
}

func TestRouter_TenantTablesUseIsolatedClientWhenProvisioned(t *testing.T) {
	centralDB := &gorm.DB{}
	modelDB := &gorm.DB{}
	tenantDB := &gorm.DB{}
	r := NewRouter(centralDB, modelDB)

	desc := &Descriptor{Provisioned: true, Mode: ModeIsolated, DB: tenantDB, Live: true}

	assert.Same(t, tenantDB, r.For("pacientes", desc))
	assert.Same(t, tenantDB, r.For("agendamentos", desc))
}

func TestRouter_UnprovisionedClinicFallsBackToModelStore(t *testing.T) {
	centralDB := &gorm.DB{}
	modelDB := &gorm.DB{}
	r := NewRouter(centralDB, modelDB)

	// database_created = false: descriptor is shared-mode with the model handle.
	desc := &Descriptor{Provisioned: false, Mode: ModeShared, DB: modelDB, Live: true}

	assert.Same(t, modelDB, r.For("pacientes", desc))
}

func TestRouter_DegradedClinicFallsBackToModelStore(t *testing.T) {
	centralDB := &gorm.DB{}
	modelDB := &gorm.DB{}
	r := NewRouter(centralDB, modelDB)

	desc := &Descriptor{
		Provisioned:    true,
		Mode:           ModeDegraded,
		DegradedReason: "isolated connection failed",
		DB:             modelDB,
		Live:           true,
	}

	assert.Same(t, modelDB, r.For("pacientes", desc))
}

func TestRouter_NilDescriptorUsesModelStore(t *testing.T) {
	centralDB := &gorm.DB{}
	modelDB := &gorm.DB{}
	r := NewRouter(centralDB, modelDB)

	assert.Same(t, modelDB, r.For("pacientes", nil))
}
