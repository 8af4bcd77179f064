package tenant

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinigo/clinic-platform/shared/config"
	"github.com/clinigo/clinic-platform/shared/models"
)

// BuildResult is the explicit outcome of constructing a clinic's client
// handle. Degradation is observable here rather than swallowed: callers
// and operators can tell a healthy shared-store clinic from one that fell
// back because its isolated database could not be reached.
type BuildResult struct {
	Mode          ConnectionMode
	Reason        string
	DB            *gorm.DB
	DatabaseName  string
	SchemaVersion string
}

// ClientBuilder turns a directory record into a usable client handle
type ClientBuilder interface {
	Build(clinic *models.Clinic) BuildResult
}

// OpenFunc opens a database handle for a DSN; injectable for tests
type OpenFunc func(dsn string) (*gorm.DB, error)

// Builder constructs per-clinic database handles. Unprovisioned clinics
// share the model store; provisioned ones get a dedicated connection from
// the credentials recorded in the directory.
type Builder struct {
	modelDB     *gorm.DB
	modelDBName string
	defaults    *config.DatabaseConfig
	open        OpenFunc
	log         *logrus.Entry
}

// NewBuilder creates a builder. The defaults config supplies host and
// credentials for half-provisioned clinics that only have a database name
// recorded.
func NewBuilder(modelDB *gorm.DB, modelCfg, defaults *config.DatabaseConfig) *Builder {
	return &Builder{
		modelDB:     modelDB,
		modelDBName: modelCfg.DBName,
		defaults:    defaults,
		open:        openTenantDB,
		log:         logrus.WithField("component", "tenant-builder"),
	}
}

// WithOpenFunc overrides how tenant databases are opened (tests)
func (b *Builder) WithOpenFunc(open OpenFunc) *Builder {
	b.open = open
	return b
}

// Build produces the client handle for a clinic. It never fails: every
// error path lands on the shared model handle with the reason recorded.
func (b *Builder) Build(clinic *models.Clinic) BuildResult {
	if !clinic.DatabaseCreated {
		return BuildResult{
			Mode:         ModeShared,
			DB:           b.modelDB,
			DatabaseName: b.modelDBName,
		}
	}

	ps := clinic.ProvisionSettings()

	if ps.HasFullCredentials() {
		cfg := config.DatabaseConfig{
			Host:     ps.DatabaseHost,
			Port:     ps.DatabasePort,
			User:     ps.DatabaseUser,
			Password: ps.DatabasePassword,
			DBName:   clinic.DatabaseName,
			SSLMode:  "require",
		}
		if cfg.Port == "" {
			cfg.Port = "5432"
		}
		db, err := b.open(cfg.GetDSN())
		if err != nil {
			return b.degrade(clinic, fmt.Sprintf("isolated connection failed: %v", err))
		}
		return BuildResult{
			Mode:          ModeIsolated,
			DB:            db,
			DatabaseName:  clinic.DatabaseName,
			SchemaVersion: ps.SchemaVersion,
		}
	}

	// Half-provisioned: the project exists and a database name was
	// recorded, but full credentials never made it into the directory.
	// Reach it through the default cluster instead.
	if clinic.DatabaseName != "" {
		cfg := *b.defaults
		cfg.DBName = clinic.DatabaseName
		db, err := b.open(cfg.GetDSN())
		if err != nil {
			return b.degrade(clinic, fmt.Sprintf("default-cluster connection failed: %v", err))
		}
		return BuildResult{
			Mode:          ModeIsolated,
			DB:            db,
			DatabaseName:  clinic.DatabaseName,
			SchemaVersion: ps.SchemaVersion,
		}
	}

	return b.degrade(clinic, "database_created set but no connection metadata recorded")
}

// degrade falls back to the shared model handle, keeping the reason
func (b *Builder) degrade(clinic *models.Clinic, reason string) BuildResult {
	b.log.WithFields(logrus.Fields{
		"clinic":    clinic.Subdomain,
		"clinic_id": clinic.ID,
		"reason":    reason,
	}).Warn("Falling back to shared model store")

	return BuildResult{
		Mode:         ModeDegraded,
		Reason:       reason,
		DB:           b.modelDB,
		DatabaseName: b.modelDBName,
	}
}

// openTenantDB opens a tenant database with a deliberately small pool;
// many clinics may be cached at once
func openTenantDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
