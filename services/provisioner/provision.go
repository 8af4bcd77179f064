package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/models"
	"github.com/clinigo/clinic-platform/shared/tenant"
	"github.com/clinigo/clinic-platform/shared/utils"
)

// ProjectInfo is what the external provisioning API returns for a newly
// created isolated backend project
type ProjectInfo struct {
	DatabaseName  string `json:"database_name"`
	Host          string `json:"host"`
	Port          string `json:"port"`
	User          string `json:"user"`
	Password      string `json:"password"`
	ServiceKey    string `json:"service_key"`
	SchemaVersion string `json:"schema_version"`
}

type provisionResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Project ProjectInfo `json:"project"`
}

// ProvisionClient calls the external project-provisioning endpoint
type ProvisionClient struct {
	endpoint   string
	httpClient *http.Client
	breaker    *utils.CircuitBreaker
}

// NewProvisionClient creates a client with circuit breaker protection
func NewProvisionClient(endpoint string) *ProvisionClient {
	return &ProvisionClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		breaker: utils.NewCircuitBreaker(5, 30*time.Second),
	}
}

// CreateProject asks the provisioning endpoint for an isolated backend
// project for the clinic
func (pc *ProvisionClient) CreateProject(ctx context.Context, req tenant.ProvisionRequest) (*ProjectInfo, error) {
	var project *ProjectInfo

	err := pc.breaker.Call(func() error {
		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal provisioning payload: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.endpoint+"/projects", bytes.NewBuffer(payload))
		if err != nil {
			return fmt.Errorf("failed to create provisioning request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := pc.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("provisioning request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("provisioning endpoint returned status %d", resp.StatusCode)
		}

		var pr provisionResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return fmt.Errorf("failed to decode provisioning response: %w", err)
		}
		if !pr.Success {
			return fmt.Errorf("provisioning rejected: %s", pr.Error)
		}
		if pr.Project.DatabaseName == "" || pr.Project.Host == "" {
			return fmt.Errorf("provisioning response missing project endpoint")
		}

		project = &pr.Project
		return nil
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}

// pendingStore is the retry-queue surface the worker writes through
type pendingStore interface {
	FindPending(ctx context.Context, clinicID uuid.UUID) (*models.PendingProvision, error)
	CreatePending(ctx context.Context, pending *models.PendingProvision) error
	SavePending(ctx context.Context, pending *models.PendingProvision) error
}

type gormPendingStore struct {
	db *gorm.DB
}

func (s gormPendingStore) FindPending(ctx context.Context, clinicID uuid.UUID) (*models.PendingProvision, error) {
	var pending models.PendingProvision
	err := s.db.WithContext(ctx).
		Where("clinica_id = ? AND status = ?", clinicID, "pending").
		First(&pending).Error
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

func (s gormPendingStore) CreatePending(ctx context.Context, pending *models.PendingProvision) error {
	return s.db.WithContext(ctx).Create(pending).Error
}

func (s gormPendingStore) SavePending(ctx context.Context, pending *models.PendingProvision) error {
	return s.db.WithContext(ctx).Save(pending).Error
}

// Worker applies provisioning requests: it creates the isolated project,
// records connection metadata back into the directory, and notifies the
// clinic's responsible contact.
type Worker struct {
	db      *gorm.DB
	pending pendingStore
	client  *ProvisionClient
	mailer  *Mailer
	rdb     *redis.Client
	log     *logrus.Entry
}

// NewWorker creates a provisioning worker. mailer and rdb are optional.
func NewWorker(db *gorm.DB, client *ProvisionClient, mailer *Mailer, rdb *redis.Client) *Worker {
	return &Worker{
		db:      db,
		pending: gormPendingStore{db: db},
		client:  client,
		mailer:  mailer,
		rdb:     rdb,
		log:     logrus.WithField("component", "provision-worker"),
	}
}

// Provision handles one provisioning request end to end
func (w *Worker) Provision(ctx context.Context, req tenant.ProvisionRequest) error {
	// The request may be a stale retry; skip clinics already provisioned.
	var clinic models.Clinic
	if err := w.db.WithContext(ctx).Where("id = ?", req.ClinicID).First(&clinic).Error; err != nil {
		return fmt.Errorf("clinic %s not found in directory: %w", req.ClinicID, err)
	}
	if clinic.DatabaseCreated {
		w.log.WithField("clinic", clinic.Subdomain).Info("Clinic already provisioned, skipping")
		return nil
	}

	project, err := w.client.CreateProject(ctx, req)
	if err != nil {
		return err
	}

	settings, err := json.Marshal(models.ProvisionSettings{
		DatabaseHost:     project.Host,
		DatabasePort:     project.Port,
		DatabaseUser:     project.User,
		DatabasePassword: project.Password,
		ServiceKey:       project.ServiceKey,
		SchemaVersion:    project.SchemaVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to encode provision settings: %w", err)
	}

	err = w.db.WithContext(ctx).Model(&models.Clinic{}).Where("id = ?", req.ClinicID).
		Updates(map[string]interface{}{
			"database_name":           project.DatabaseName,
			"database_created":        true,
			"configuracoes_especiais": settings,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record connection metadata: %w", err)
	}

	id := req.ClinicID
	aerr := w.db.WithContext(ctx).Create(&models.AuditLog{
		ClinicID: &id,
		Actor:    "provisioner",
		Action:   "clinic_provisioned",
		Details:  fmt.Sprintf(`{"database_name":%q}`, project.DatabaseName),
	}).Error
	if aerr != nil {
		w.log.WithError(aerr).Warn("Audit write failed")
	}

	// Operator-facing receipt; the admin monitoring view surfaces it.
	if cerr := utils.CacheSet(tenant.ProvisionReceiptKey(req.Subdomain), project.DatabaseName, 24*time.Hour); cerr != nil {
		w.log.WithError(cerr).Debug("Provision receipt cache write failed")
	}

	// The serving instances may hold a shared-store descriptor for this
	// clinic; tell them to re-resolve.
	if w.rdb != nil {
		if err := tenant.PublishInvalidation(ctx, w.rdb, req.Subdomain); err != nil {
			w.log.WithError(err).Warn("Cache invalidation publish failed")
		}
	}

	if w.mailer != nil {
		if err := w.mailer.SendWelcome(req.Email, req.Name, req.Subdomain); err != nil {
			w.log.WithError(err).WithField("clinic", req.Subdomain).Warn("Welcome email failed")
		}
	}

	w.log.WithFields(logrus.Fields{
		"clinic":   req.Subdomain,
		"database": project.DatabaseName,
	}).Info("Clinic provisioned")

	return nil
}

// recordFailure stores or refreshes the retry row for a failed
// provision. A transient lookup error records nothing: inserting
// blindly would duplicate the clinic's pending row.
func (w *Worker) recordFailure(ctx context.Context, req tenant.ProvisionRequest, cause error) {
	existing, err := w.pending.FindPending(ctx, req.ClinicID)
	switch {
	case err == nil:
		next := time.Now().Add(backoffFor(existing.RetryCount))
		existing.ErrorMessage = cause.Error()
		existing.NextRetryAt = &next
		if serr := w.pending.SavePending(ctx, existing); serr != nil {
			w.log.WithError(serr).Error("Failed to update pending provision")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		next := time.Now().Add(backoffFor(0))
		pending := &models.PendingProvision{
			ClinicID:     req.ClinicID,
			Subdomain:    req.Subdomain,
			ErrorMessage: cause.Error(),
			Status:       "pending",
			NextRetryAt:  &next,
		}
		if cerr := w.pending.CreatePending(ctx, pending); cerr != nil {
			w.log.WithError(cerr).Error("Failed to record pending provision")
		}
	default:
		w.log.WithError(err).WithField("clinic", req.Subdomain).Error("Failed to look up pending provision; skipping retry record")
	}
}

// backoffFor doubles the retry delay per attempt, capped at one hour
func backoffFor(retryCount int) time.Duration {
	d := time.Minute
	for i := 0; i < retryCount && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
