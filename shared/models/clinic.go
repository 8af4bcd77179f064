package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ClinicStatus represents the operational status of a clinic tenant
type ClinicStatus string

const (
	ClinicStatusActive    ClinicStatus = "ativa"
	ClinicStatusSuspended ClinicStatus = "suspensa"
	ClinicStatusCancelled ClinicStatus = "cancelada"
)

// Clinic represents one tenant in the central directory. Column names
// follow the central store's existing schema (clinicas_central), which
// predates this service and cannot change.
type Clinic struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name            string          `json:"name" gorm:"column:nome;not null"`
	Subdomain       string          `json:"subdomain" gorm:"column:subdominio;uniqueIndex;not null"`
	ResponsibleName string          `json:"responsible_name" gorm:"column:responsavel"`
	Email           string          `json:"email" gorm:"column:email"`
	Phone           string          `json:"phone" gorm:"column:telefone"`
	Status          ClinicStatus    `json:"status" gorm:"column:status;default:'ativa'"`
	Plan            string          `json:"plan" gorm:"column:plano;default:'basico'"`
	DatabaseName    string          `json:"database_name" gorm:"column:database_name"`
	DatabaseCreated bool            `json:"database_created" gorm:"column:database_created;default:false"`
	Settings        json.RawMessage `json:"settings" gorm:"column:configuracoes_especiais;type:jsonb;default:'{}'"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName returns the table name for the Clinic model
func (Clinic) TableName() string {
	return "clinicas_central"
}

// IsActive reports whether the clinic may serve traffic
func (c *Clinic) IsActive() bool {
	return c.Status == ClinicStatusActive
}

// CanTransitionTo reports whether a status change is allowed.
// Allowed transitions: active <-> suspended, active -> cancelled.
func (c *Clinic) CanTransitionTo(next ClinicStatus) bool {
	switch c.Status {
	case ClinicStatusActive:
		return next == ClinicStatusSuspended || next == ClinicStatusCancelled
	case ClinicStatusSuspended:
		return next == ClinicStatusActive
	default:
		return false
	}
}

// ProvisionSettings is the shape of the configuracoes_especiais blob once
// an isolated database has been provisioned for the clinic.
type ProvisionSettings struct {
	DatabaseHost     string `json:"database_host,omitempty"`
	DatabasePort     string `json:"database_port,omitempty"`
	DatabaseUser     string `json:"database_user,omitempty"`
	DatabasePassword string `json:"database_password,omitempty"`
	ServiceKey       string `json:"service_key,omitempty"`
	SchemaVersion    string `json:"schema_version,omitempty"`
}

// ProvisionSettings decodes the settings blob. A missing or malformed blob
// decodes to the zero value; callers treat that as "not really provisioned".
func (c *Clinic) ProvisionSettings() ProvisionSettings {
	var ps ProvisionSettings
	if len(c.Settings) > 0 {
		_ = json.Unmarshal(c.Settings, &ps)
	}
	return ps
}

// HasFullCredentials reports whether the settings blob carries everything
// needed to reach the clinic's isolated database directly
func (ps ProvisionSettings) HasFullCredentials() bool {
	return ps.DatabaseHost != "" && ps.DatabaseUser != "" && ps.DatabasePassword != ""
}
