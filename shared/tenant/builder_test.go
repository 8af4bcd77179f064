package tenant

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/config"
	"github.com/clinigo/clinic-platform/shared/models"
)

func testBuilder(open OpenFunc) (*Builder, *gorm.DB) {
	modelDB := &gorm.DB{}
	modelCfg := &config.DatabaseConfig{DBName: "clinigo_modelo"}
	defaults := &config.DatabaseConfig{
		Host: "db.internal", Port: "5432", User: "svc", Password: "pw", SSLMode: "disable",
	}
	b := NewBuilder(modelDB, modelCfg, defaults)
	if open != nil {
		b.WithOpenFunc(open)
	}
	return b, modelDB
}

func TestBuilder_UnprovisionedClinicSharesModelStore(t *testing.T) {
	b, modelDB := testBuilder(func(dsn string) (*gorm.DB, error) {
		t.Fatal("no connection should be opened for an unprovisioned clinic")
		return nil, nil
	})

	res := b.Build(&models.Clinic{Subdomain: "acme", DatabaseCreated: false})

	assert.Equal(t, ModeShared, res.Mode)
	assert.Same(t, modelDB, res.DB)
	assert.Equal(t, "clinigo_modelo", res.DatabaseName)
}

func TestBuilder_FullCredentialsOpenIsolatedConnection(t *testing.T) {
	tenantDB := &gorm.DB{}
	var gotDSN string
	b, _ := testBuilder(func(dsn string) (*gorm.DB, error) {
		gotDSN = dsn
		return tenantDB, nil
	})

	clinic := &models.Clinic{
		Subdomain:       "acme",
		DatabaseName:    "clinica_acme",
		DatabaseCreated: true,
		Settings: []byte(`{
			"database_host":"acme-db.example.net",
			"database_user":"acme",
			"database_password":"secret",
			"schema_version":"42"
		}`),
	}

	res := b.Build(clinic)

	require.Equal(t, ModeIsolated, res.Mode)
	assert.Same(t, tenantDB, res.DB)
	assert.Equal(t, "clinica_acme", res.DatabaseName)
	assert.Equal(t, "42", res.SchemaVersion)
	assert.Contains(t, gotDSN, "host=acme-db.example.net")
	assert.Contains(t, gotDSN, "dbname=clinica_acme")
	assert.Contains(t, gotDSN, "port=5432", "missing port falls back to 5432")
}

func TestBuilder_HalfProvisionedUsesDefaultCluster(t *testing.T) {
	tenantDB := &gorm.DB{}
	var gotDSN string
	b, _ := testBuilder(func(dsn string) (*gorm.DB, error) {
		gotDSN = dsn
		return tenantDB, nil
	})

	// database_created is set but the credentials never made it into the
	// settings blob; only the database name exists.
	clinic := &models.Clinic{
		Subdomain:       "acme",
		DatabaseName:    "clinica_acme",
		DatabaseCreated: true,
		Settings:        []byte(`{}`),
	}

	res := b.Build(clinic)

	require.Equal(t, ModeIsolated, res.Mode)
	assert.Same(t, tenantDB, res.DB)
	assert.True(t, strings.Contains(gotDSN, "host=db.internal"))
	assert.Contains(t, gotDSN, "dbname=clinica_acme")
}

func TestBuilder_ConnectionFailureDegradesToModelStore(t *testing.T) {
	b, modelDB := testBuilder(func(dsn string) (*gorm.DB, error) {
		return nil, errors.New("connection refused")
	})

	clinic := &models.Clinic{
		Subdomain:       "acme",
		DatabaseName:    "clinica_acme",
		DatabaseCreated: true,
		Settings:        []byte(`{"database_host":"h","database_user":"u","database_password":"p"}`),
	}

	res := b.Build(clinic)

	assert.Equal(t, ModeDegraded, res.Mode)
	assert.Contains(t, res.Reason, "connection refused")
	assert.Same(t, modelDB, res.DB)
	assert.Equal(t, "clinigo_modelo", res.DatabaseName)
}

func TestBuilder_ProvisionedWithoutMetadataDegrades(t *testing.T) {
	b, modelDB := testBuilder(nil)

	clinic := &models.Clinic{
		Subdomain:       "acme",
		DatabaseCreated: true,
		Settings:        []byte(`{}`),
	}

	res := b.Build(clinic)

	assert.Equal(t, ModeDegraded, res.Mode)
	assert.Same(t, modelDB, res.DB)
	assert.NotEmpty(t, res.Reason)
}
