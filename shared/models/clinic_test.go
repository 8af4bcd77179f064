package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClinic_StatusTransitions(t *testing.T) {
	tests := []struct {
		from    ClinicStatus
		to      ClinicStatus
		allowed bool
	}{
		{ClinicStatusActive, ClinicStatusSuspended, true},
		{ClinicStatusActive, ClinicStatusCancelled, true},
		{ClinicStatusSuspended, ClinicStatusActive, true},
		{ClinicStatusSuspended, ClinicStatusCancelled, false},
		{ClinicStatusCancelled, ClinicStatusActive, false},
		{ClinicStatusCancelled, ClinicStatusSuspended, false},
		{ClinicStatusActive, ClinicStatusActive, false},
	}

	for _, tt := range tests {
		c := &Clinic{Status: tt.from}
		assert.Equal(t, tt.allowed, c.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestClinic_ProvisionSettingsDecoding(t *testing.T) {
	c := &Clinic{Settings: []byte(`{
		"database_host": "db.acme.net",
		"database_user": "acme",
		"database_password": "secret",
		"service_key": "sk-123",
		"schema_version": "7"
	}`)}

	ps := c.ProvisionSettings()
	assert.True(t, ps.HasFullCredentials())
	assert.Equal(t, "db.acme.net", ps.DatabaseHost)
	assert.Equal(t, "7", ps.SchemaVersion)
}

func TestClinic_ProvisionSettingsToleratesBadBlobs(t *testing.T) {
	for _, blob := range [][]byte{nil, []byte(``), []byte(`{}`), []byte(`not json`)} {
		c := &Clinic{Settings: blob}
		ps := c.ProvisionSettings()
		assert.False(t, ps.HasFullCredentials())
	}
}

func TestClinic_HasFullCredentialsRequiresAllFields(t *testing.T) {
	partial := []ProvisionSettings{
		{DatabaseHost: "h"},
		{DatabaseHost: "h", DatabaseUser: "u"},
		{DatabaseUser: "u", DatabasePassword: "p"},
	}
	for _, ps := range partial {
		assert.False(t, ps.HasFullCredentials())
	}

	full := ProvisionSettings{DatabaseHost: "h", DatabaseUser: "u", DatabasePassword: "p"}
	assert.True(t, full.HasFullCredentials())
}
