package tenant

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinigo/clinic-platform/shared/models"
)

// ConnectionCounterKey is the Redis key holding a clinic's rolling
// connection counter, read by the admin monitoring view
func ConnectionCounterKey(subdomain string) string {
	return "clinic:connections:" + subdomain
}

// ProvisionReceiptKey is the Redis key holding the database name of a
// clinic's most recent successful provision
func ProvisionReceiptKey(subdomain string) string {
	return "clinic:provisioned:" + subdomain
}

// Monitor records per-clinic connection activity into the central
// monitoring table and a Redis counter. Everything here is best-effort:
// failures are logged and dropped, never surfaced to the request path.
type Monitor struct {
	central *gorm.DB
	rdb     *redis.Client
	log     *logrus.Entry
}

// NewMonitor creates a monitor. rdb may be nil when Redis is unavailable.
func NewMonitor(central *gorm.DB, rdb *redis.Client) *Monitor {
	return &Monitor{
		central: central,
		rdb:     rdb,
		log:     logrus.WithField("component", "connection-monitor"),
	}
}

// RecordActivity upserts the clinic's monitoring row and bumps its
// connection counter
func (m *Monitor) RecordActivity(desc *Descriptor) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	row := models.ConnectionMonitor{
		ClinicID:        desc.ClinicID,
		Subdomain:       desc.Subdomain,
		DatabaseName:    desc.DatabaseName,
		ConnectionCount: 1,
		LastActivityAt:  now,
	}

	err := m.central.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "clinica_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_conexoes":   gorm.Expr("monitoramento_conexoes.total_conexoes + 1"),
			"ultima_atividade": now,
			"database_name":    desc.DatabaseName,
		}),
	}).Create(&row).Error
	if err != nil {
		m.log.WithError(err).WithField("clinic", desc.Subdomain).Warn("Monitoring upsert failed")
	}

	if m.rdb != nil {
		key := ConnectionCounterKey(desc.Subdomain)
		if err := m.rdb.Incr(ctx, key).Err(); err != nil {
			m.log.WithError(err).Debug("Redis connection counter failed")
		}
	}
}
