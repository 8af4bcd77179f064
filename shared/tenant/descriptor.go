package tenant

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionMode says which store a clinic's tenant-scoped data lives in
type ConnectionMode string

const (
	// ModeIsolated routes tenant tables to the clinic's own database.
	ModeIsolated ConnectionMode = "isolated"
	// ModeShared routes tenant tables to the shared model database
	// (row-level tenancy); used before provisioning completes.
	ModeShared ConnectionMode = "shared"
	// ModeDegraded is ModeShared forced by a client-construction failure
	// on a clinic that should have been isolated.
	ModeDegraded ConnectionMode = "degraded"
)

// HealthStatus is a coarse health classification for a cached connection
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthUnknown  HealthStatus = "unknown"
)

// Descriptor is the process-local, cached view of one clinic's connection.
// It is owned exclusively by the Cache; a process restart loses all
// descriptors and re-resolves from the central directory.
type Descriptor struct {
	ClinicID      uuid.UUID
	Subdomain     string
	DatabaseName  string
	SchemaVersion string
	Provisioned   bool
	Mode          ConnectionMode
	// DegradedReason explains why an isolated clinic fell back to the
	// shared store; empty unless Mode is ModeDegraded.
	DegradedReason string
	Health         HealthStatus
	Live           bool
	ResolvedAt     time.Time

	// DB is the handle tenant-scoped operations should use. In shared and
	// degraded modes it is the model store handle.
	DB *gorm.DB
}
