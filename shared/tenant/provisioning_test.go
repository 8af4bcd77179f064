package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigo/clinic-platform/shared/models"
)

// fakeStore is an in-memory ClinicStore
type fakeStore struct {
	clinics   []*models.Clinic
	audits    []*models.AuditLog
	pendings  []*models.PendingProvision
	createErr error
	auditErr  error
}

func (s *fakeStore) SubdomainTaken(_ context.Context, key string) (bool, error) {
	for _, c := range s.clinics {
		if c.Subdomain == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateClinic(_ context.Context, clinic *models.Clinic) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.clinics = append(s.clinics, clinic)
	return nil
}

func (s *fakeStore) RecordAudit(_ context.Context, log *models.AuditLog) error {
	if s.auditErr != nil {
		return s.auditErr
	}
	s.audits = append(s.audits, log)
	return nil
}

func (s *fakeStore) RecordPendingProvision(_ context.Context, pending *models.PendingProvision) error {
	s.pendings = append(s.pendings, pending)
	return nil
}

// fakeRequester records or fails provisioning handoffs
type fakeRequester struct {
	requests []ProvisionRequest
	err      error
}

func (r *fakeRequester) RequestProvision(_ context.Context, req ProvisionRequest) error {
	if r.err != nil {
		return r.err
	}
	r.requests = append(r.requests, req)
	return nil
}

func validInput() CreateClinicInput {
	return CreateClinicInput{
		Name:      "Clinica Acme",
		Email:     "admin@acme.com",
		Subdomain: "acme",
		Actor:     "ops@clinigo.app",
	}
}

func TestCreateClinic_FullSuccess(t *testing.T) {
	store := &fakeStore{}
	requester := &fakeRequester{}
	p := NewProvisioner(store, requester, nil, nil)

	outcome, err := p.CreateClinic(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcome.Status)
	assert.Empty(t, outcome.Warning)
	require.Len(t, store.clinics, 1)
	assert.Equal(t, "acme", store.clinics[0].Subdomain)
	assert.Equal(t, models.ClinicStatusActive, store.clinics[0].Status)
	assert.False(t, store.clinics[0].DatabaseCreated)
	assert.Equal(t, "basico", store.clinics[0].Plan)

	require.Len(t, requester.requests, 1)
	assert.Equal(t, store.clinics[0].ID, requester.requests[0].ClinicID)

	require.Len(t, store.audits, 1)
	assert.Equal(t, "clinic_created", store.audits[0].Action)
}

func TestCreateClinic_ProvisionHandoffFailureIsDowngraded(t *testing.T) {
	store := &fakeStore{}
	requester := &fakeRequester{err: errors.New("broker unreachable")}
	p := NewProvisioner(store, requester, nil, nil)

	outcome, err := p.CreateClinic(context.Background(), validInput())
	require.NoError(t, err, "handoff failure must not fail the workflow")

	assert.Equal(t, OutcomeCreatedDegraded, outcome.Status)
	assert.Contains(t, outcome.Warning, "broker unreachable")

	// Phase 1 stands: the directory record exists, unprovisioned.
	require.Len(t, store.clinics, 1)
	assert.False(t, store.clinics[0].DatabaseCreated)

	// The failure is queued for retry and audited.
	require.Len(t, store.pendings, 1)
	assert.Equal(t, store.clinics[0].ID, store.pendings[0].ClinicID)
	require.Len(t, store.audits, 1)
	assert.Equal(t, "clinic_created_degraded", store.audits[0].Action)
}

func TestCreateClinic_DirectoryInsertFailureAborts(t *testing.T) {
	store := &fakeStore{createErr: errors.New("central store down")}
	requester := &fakeRequester{}
	p := NewProvisioner(store, requester, nil, nil)

	outcome, err := p.CreateClinic(context.Background(), validInput())
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Empty(t, requester.requests, "phase 2 must not run after a phase 1 failure")
}

func TestCreateClinic_SubdomainValidation(t *testing.T) {
	store := &fakeStore{}
	p := NewProvisioner(store, &fakeRequester{}, nil, nil)

	for _, sub := range []string{"", "UPPER CASE", "-leading", "trailing-", "www", "admin", "api"} {
		in := validInput()
		in.Subdomain = sub
		_, err := p.CreateClinic(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidSubdomain, "subdomain %q", sub)
	}

	assert.Empty(t, store.clinics)
}

func TestCreateClinic_SubdomainUpperCaseIsNormalized(t *testing.T) {
	store := &fakeStore{}
	p := NewProvisioner(store, &fakeRequester{}, nil, nil)

	in := validInput()
	in.Subdomain = "  Acme  "
	outcome, err := p.CreateClinic(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "acme", outcome.Clinic.Subdomain)
}

func TestCreateClinic_AuditFailureIsLoggedNotFatal(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	store := &fakeStore{auditErr: errors.New("audit table unavailable")}
	p := NewProvisioner(store, &fakeRequester{}, nil, nil)

	outcome, err := p.CreateClinic(context.Background(), validInput())
	require.NoError(t, err, "an audit failure must not fail the workflow")
	assert.Equal(t, OutcomeCreated, outcome.Status)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Audit write failed" {
			warned = true
		}
	}
	assert.True(t, warned, "the audit failure must be logged")
}

func TestCreateClinic_DuplicateSubdomainRejected(t *testing.T) {
	store := &fakeStore{}
	p := NewProvisioner(store, &fakeRequester{}, nil, nil)

	_, err := p.CreateClinic(context.Background(), validInput())
	require.NoError(t, err)

	_, err = p.CreateClinic(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrSubdomainTaken)
	assert.Len(t, store.clinics, 1)
}
