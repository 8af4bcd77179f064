package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionMonitor is a best-effort activity record per clinic, upserted
// by the connection layer and read only by operator dashboards
type ConnectionMonitor struct {
	ClinicID        uuid.UUID `json:"clinic_id" gorm:"column:clinica_id;type:uuid;primary_key"`
	Subdomain       string    `json:"subdomain" gorm:"column:subdominio"`
	DatabaseName    string    `json:"database_name" gorm:"column:database_name"`
	ConnectionCount int64     `json:"connection_count" gorm:"column:total_conexoes;default:0"`
	LastActivityAt  time.Time `json:"last_activity_at" gorm:"column:ultima_atividade"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the table name for the ConnectionMonitor model
func (ConnectionMonitor) TableName() string {
	return "monitoramento_conexoes"
}

// AuditLog records administrative actions in the central store
type AuditLog struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ClinicID  *uuid.UUID `json:"clinic_id,omitempty" gorm:"column:clinica_id;type:uuid;index"`
	Actor     string     `json:"actor" gorm:"column:autor"`
	Action    string     `json:"action" gorm:"column:acao;not null"`
	Details   string     `json:"details" gorm:"column:detalhes;type:jsonb;default:'{}'"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "admin_logs_acesso"
}

// PendingProvision tracks provisioning requests that failed and await retry
type PendingProvision struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ClinicID     uuid.UUID  `json:"clinic_id" gorm:"column:clinica_id;type:uuid;not null;index"`
	Subdomain    string     `json:"subdomain" gorm:"column:subdominio;not null"`
	ErrorMessage string     `json:"error_message" gorm:"not null"`
	RetryCount   int        `json:"retry_count" gorm:"default:0"`
	Status       string     `json:"status" gorm:"default:'pending'"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// TableName returns the table name for the PendingProvision model
func (PendingProvision) TableName() string {
	return "provisionamentos_pendentes"
}
