package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/models"
	"github.com/clinigo/clinic-platform/shared/tenant"
)

// fakePendingStore records retry-row operations in memory
type fakePendingStore struct {
	existing *models.PendingProvision
	findErr  error
	created  []*models.PendingProvision
	saved    []*models.PendingProvision
}

func (s *fakePendingStore) FindPending(_ context.Context, clinicID uuid.UUID) (*models.PendingProvision, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.existing, nil
}

func (s *fakePendingStore) CreatePending(_ context.Context, pending *models.PendingProvision) error {
	s.created = append(s.created, pending)
	return nil
}

func (s *fakePendingStore) SavePending(_ context.Context, pending *models.PendingProvision) error {
	s.saved = append(s.saved, pending)
	return nil
}

func testWorker(store *fakePendingStore) *Worker {
	return &Worker{
		pending: store,
		log:     logrus.WithField("component", "provision-worker"),
	}
}

func provisionReq() tenant.ProvisionRequest {
	return tenant.ProvisionRequest{
		ClinicID:  uuid.New(),
		Name:      "Clinica Acme",
		Subdomain: "acme",
		Email:     "admin@acme.com",
		Plan:      "basico",
	}
}

func TestRecordFailure_CreatesRowWhenNoneExists(t *testing.T) {
	store := &fakePendingStore{}
	w := testWorker(store)

	req := provisionReq()
	w.recordFailure(context.Background(), req, errors.New("endpoint down"))

	require.Len(t, store.created, 1)
	assert.Empty(t, store.saved)
	assert.Equal(t, req.ClinicID, store.created[0].ClinicID)
	assert.Equal(t, "pending", store.created[0].Status)
	assert.Equal(t, "endpoint down", store.created[0].ErrorMessage)
	require.NotNil(t, store.created[0].NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *store.created[0].NextRetryAt, 5*time.Second)
}

func TestRecordFailure_RefreshesExistingRow(t *testing.T) {
	req := provisionReq()
	store := &fakePendingStore{existing: &models.PendingProvision{
		ClinicID:     req.ClinicID,
		Subdomain:    req.Subdomain,
		ErrorMessage: "first failure",
		RetryCount:   3,
		Status:       "pending",
	}}
	w := testWorker(store)

	w.recordFailure(context.Background(), req, errors.New("still down"))

	assert.Empty(t, store.created, "an existing pending row must be refreshed, not duplicated")
	require.Len(t, store.saved, 1)
	assert.Equal(t, "still down", store.saved[0].ErrorMessage)
	require.NotNil(t, store.saved[0].NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(8*time.Minute), *store.saved[0].NextRetryAt, 5*time.Second)
}

func TestRecordFailure_TransientLookupErrorRecordsNothing(t *testing.T) {
	store := &fakePendingStore{findErr: errors.New("central store timeout")}
	w := testWorker(store)

	w.recordFailure(context.Background(), provisionReq(), errors.New("endpoint down"))

	assert.Empty(t, store.created, "a lookup failure must not spawn a duplicate retry row")
	assert.Empty(t, store.saved)
}

func TestBackoffFor_DoublesAndCaps(t *testing.T) {
	assert.Equal(t, time.Minute, backoffFor(0))
	assert.Equal(t, 2*time.Minute, backoffFor(1))
	assert.Equal(t, 8*time.Minute, backoffFor(3))
	assert.Equal(t, time.Hour, backoffFor(10))
	assert.Equal(t, time.Hour, backoffFor(100))
}
