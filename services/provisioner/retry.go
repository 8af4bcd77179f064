package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/models"
	"github.com/clinigo/clinic-platform/shared/tenant"
)

// RetryLoop re-attempts provisioning for clinics whose initial request
// failed, until they succeed or exhaust the retry budget
type RetryLoop struct {
	db         *gorm.DB
	worker     *Worker
	maxRetries int
	batchSize  int
	interval   time.Duration
	log        *logrus.Entry
}

// NewRetryLoop creates the retry loop
func NewRetryLoop(db *gorm.DB, worker *Worker, maxRetries int, interval time.Duration) *RetryLoop {
	return &RetryLoop{
		db:         db,
		worker:     worker,
		maxRetries: maxRetries,
		batchSize:  20,
		interval:   interval,
		log:        logrus.WithField("component", "provision-retry"),
	}
}

// Run polls the retry table until the context is cancelled
func (rl *RetryLoop) Run(ctx context.Context) {
	rl.log.Info("Starting provisioning retry loop")

	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.processPending(ctx)
		}
	}
}

// processPending retries one batch of due provisioning failures
func (rl *RetryLoop) processPending(ctx context.Context) {
	var pending []models.PendingProvision
	err := rl.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", "pending", time.Now()).
		Order("created_at").
		Limit(rl.batchSize).
		Find(&pending).Error
	if err != nil {
		rl.log.WithError(err).Error("Error fetching pending provisions")
		return
	}

	for _, p := range pending {
		rl.retry(ctx, p)
	}
}

// retry re-attempts one provision and updates its retry row
func (rl *RetryLoop) retry(ctx context.Context, p models.PendingProvision) {
	var clinic models.Clinic
	if err := rl.db.WithContext(ctx).Where("id = ?", p.ClinicID).First(&clinic).Error; err != nil {
		rl.log.WithError(err).WithField("clinic_id", p.ClinicID).Error("Pending provision references unknown clinic")
		rl.resolve(ctx, &p, "orphaned")
		return
	}
	if clinic.DatabaseCreated {
		rl.resolve(ctx, &p, "resolved")
		return
	}

	req := tenant.ProvisionRequest{
		ClinicID:  clinic.ID,
		Name:      clinic.Name,
		Subdomain: clinic.Subdomain,
		Email:     clinic.Email,
		Plan:      clinic.Plan,
	}

	pctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	err := rl.worker.Provision(pctx, req)
	cancel()

	if err == nil {
		rl.resolve(ctx, &p, "resolved")
		return
	}

	p.RetryCount++
	p.ErrorMessage = err.Error()
	if p.RetryCount >= rl.maxRetries {
		p.Status = "failed"
		rl.log.WithField("clinic", p.Subdomain).Error("Provisioning retries exhausted; manual intervention required")
	} else {
		next := time.Now().Add(backoffFor(p.RetryCount))
		p.NextRetryAt = &next
	}

	if serr := rl.db.WithContext(ctx).Save(&p).Error; serr != nil {
		rl.log.WithError(serr).Error("Failed to update pending provision")
	}
}

// resolve closes out a retry row
func (rl *RetryLoop) resolve(ctx context.Context, p *models.PendingProvision, status string) {
	now := time.Now()
	p.Status = status
	p.ResolvedAt = &now
	if err := rl.db.WithContext(ctx).Save(p).Error; err != nil {
		rl.log.WithError(err).Error("Failed to resolve pending provision")
	}
}
