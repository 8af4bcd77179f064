package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/models"
)

var (
	// ErrInvalidSubdomain means the requested subdomain is malformed or reserved.
	ErrInvalidSubdomain = errors.New("invalid subdomain")
	// ErrSubdomainTaken means a clinic already owns the subdomain.
	ErrSubdomainTaken = errors.New("subdomain already in use")
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// reservedSubdomains can never be assigned to a clinic
var reservedSubdomains = map[string]struct{}{
	"www":   {},
	"admin": {},
	"api":   {},
	"app":   {},
}

// ClinicStore is the directory surface the provisioning workflow needs
type ClinicStore interface {
	SubdomainTaken(ctx context.Context, key string) (bool, error)
	CreateClinic(ctx context.Context, clinic *models.Clinic) error
	RecordAudit(ctx context.Context, log *models.AuditLog) error
	RecordPendingProvision(ctx context.Context, pending *models.PendingProvision) error
}

// ProvisionRequest asks the provisioning pipeline to create an isolated
// backend project for a clinic
type ProvisionRequest struct {
	ClinicID  uuid.UUID `json:"clinic_id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Email     string    `json:"email"`
	Plan      string    `json:"plan"`
}

// ProvisionRequester hands a provisioning request to the async pipeline
type ProvisionRequester interface {
	RequestProvision(ctx context.Context, req ProvisionRequest) error
}

// OutcomeStatus classifies how clinic creation ended
type OutcomeStatus string

const (
	// OutcomeCreated means the directory record exists and the
	// provisioning request was accepted by the pipeline.
	OutcomeCreated OutcomeStatus = "created"
	// OutcomeCreatedDegraded means the directory record exists but the
	// provisioning request could not be handed off; the clinic serves
	// from the shared model store until a retry succeeds.
	OutcomeCreatedDegraded OutcomeStatus = "created_with_warning"
)

// Outcome is the result of the clinic-creation workflow
type Outcome struct {
	Status  OutcomeStatus  `json:"status"`
	Clinic  *models.Clinic `json:"clinic"`
	Warning string         `json:"warning,omitempty"`
}

// CreateClinicInput are the attributes of a new clinic tenant
type CreateClinicInput struct {
	Name            string
	ResponsibleName string
	Email           string
	Phone           string
	Subdomain       string
	Plan            string
	Actor           string
}

// Provisioner runs the two-phase clinic-creation workflow: a directory
// insert that must succeed, then a best-effort handoff to the async
// provisioning pipeline.
type Provisioner struct {
	store     ClinicStore
	requester ProvisionRequester
	cache     *Cache
	rdb       *redis.Client
	log       *logrus.Entry
}

// NewProvisioner creates the workflow. cache and rdb are optional; when
// set, successful creation invalidates local and remote caches.
func NewProvisioner(store ClinicStore, requester ProvisionRequester, cache *Cache, rdb *redis.Client) *Provisioner {
	return &Provisioner{
		store:     store,
		requester: requester,
		cache:     cache,
		rdb:       rdb,
		log:       logrus.WithField("component", "provisioner"),
	}
}

// CreateClinic inserts the directory record and requests an isolated
// backend project. A directory failure aborts; a provisioning handoff
// failure is downgraded to a created-with-warning outcome and the clinic
// stays unprovisioned until the retry loop picks it up.
func (p *Provisioner) CreateClinic(ctx context.Context, in CreateClinicInput) (*Outcome, error) {
	key := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if !subdomainPattern.MatchString(key) {
		return nil, ErrInvalidSubdomain
	}
	if _, reserved := reservedSubdomains[key]; reserved {
		return nil, ErrInvalidSubdomain
	}

	taken, err := p.store.SubdomainTaken(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("subdomain availability check: %w", err)
	}
	if taken {
		return nil, ErrSubdomainTaken
	}

	plan := in.Plan
	if plan == "" {
		plan = "basico"
	}

	clinic := &models.Clinic{
		ID:              uuid.New(),
		Name:            in.Name,
		Subdomain:       key,
		ResponsibleName: in.ResponsibleName,
		Email:           in.Email,
		Phone:           in.Phone,
		Status:          models.ClinicStatusActive,
		Plan:            plan,
		DatabaseCreated: false,
		Settings:        []byte("{}"),
	}

	if err := p.store.CreateClinic(ctx, clinic); err != nil {
		return nil, fmt.Errorf("directory insert: %w", err)
	}

	req := ProvisionRequest{
		ClinicID:  clinic.ID,
		Name:      clinic.Name,
		Subdomain: clinic.Subdomain,
		Email:     clinic.Email,
		Plan:      clinic.Plan,
	}

	if err := p.requester.RequestProvision(ctx, req); err != nil {
		p.log.WithError(err).WithField("clinic", key).Warn("Provisioning handoff failed; clinic stays on shared store")

		next := time.Now().Add(time.Minute)
		pending := &models.PendingProvision{
			ClinicID:     clinic.ID,
			Subdomain:    clinic.Subdomain,
			ErrorMessage: err.Error(),
			Status:       "pending",
			NextRetryAt:  &next,
		}
		if perr := p.store.RecordPendingProvision(ctx, pending); perr != nil {
			p.log.WithError(perr).Warn("Failed to record pending provision")
		}

		p.audit(ctx, clinic, in.Actor, "clinic_created_degraded", err.Error())
		return &Outcome{
			Status:  OutcomeCreatedDegraded,
			Clinic:  clinic,
			Warning: fmt.Sprintf("clinic created but provisioning request failed: %v", err),
		}, nil
	}

	p.audit(ctx, clinic, in.Actor, "clinic_created", "")
	p.invalidateCaches(ctx)

	return &Outcome{Status: OutcomeCreated, Clinic: clinic}, nil
}

// audit records an administrative action; failures are logged only
func (p *Provisioner) audit(ctx context.Context, clinic *models.Clinic, actor, action, detail string) {
	details := "{}"
	if detail != "" {
		details = fmt.Sprintf(`{"warning":%q}`, detail)
	}
	id := clinic.ID
	err := p.store.RecordAudit(ctx, &models.AuditLog{
		ClinicID: &id,
		Actor:    actor,
		Action:   action,
		Details:  details,
	})
	if err != nil {
		p.log.WithError(err).Warn("Audit write failed")
	}
}

// invalidateCaches clears the local cache and tells other instances to do
// the same
func (p *Provisioner) invalidateCaches(ctx context.Context) {
	if p.cache != nil {
		p.cache.Clear()
	}
	if p.rdb != nil {
		if err := PublishInvalidation(ctx, p.rdb, "*"); err != nil {
			p.log.WithError(err).Warn("Cache invalidation publish failed")
		}
	}
}

// GormClinicStore implements ClinicStore over the central store
type GormClinicStore struct {
	db *gorm.DB
}

// NewGormClinicStore creates the gorm-backed clinic store
func NewGormClinicStore(db *gorm.DB) *GormClinicStore {
	return &GormClinicStore{db: db}
}

// SubdomainTaken reports whether any clinic already owns the subdomain
func (s *GormClinicStore) SubdomainTaken(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Clinic{}).Where("subdominio = ?", key).Count(&count).Error
	return count > 0, err
}

// CreateClinic inserts a directory record
func (s *GormClinicStore) CreateClinic(ctx context.Context, clinic *models.Clinic) error {
	return s.db.WithContext(ctx).Create(clinic).Error
}

// RecordAudit inserts an audit row
func (s *GormClinicStore) RecordAudit(ctx context.Context, log *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

// RecordPendingProvision inserts a retry row for a failed provisioning handoff
func (s *GormClinicStore) RecordPendingProvision(ctx context.Context, pending *models.PendingProvision) error {
	return s.db.WithContext(ctx).Create(pending).Error
}
