package tenant

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/models"
)

var (
	// ErrClinicNotFound means no directory record exists for the key.
	ErrClinicNotFound = errors.New("clinic not found")
	// ErrClinicSuspended means the clinic exists but is suspended.
	ErrClinicSuspended = errors.New("clinic suspended")
	// ErrClinicCancelled means the clinic exists but was cancelled.
	ErrClinicCancelled = errors.New("clinic cancelled")
)

// DirectoryLookup resolves a clinic key against the central directory
type DirectoryLookup interface {
	Lookup(ctx context.Context, key string) (*models.Clinic, error)
}

// Directory is the gorm-backed directory over the central store.
// It is the single authoritative status read for a request: suspended and
// cancelled clinics surface as sentinel errors alongside the record, so
// callers never need a second status fetch.
type Directory struct {
	db *gorm.DB
}

// NewDirectory creates a directory over the central administrative store
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// Lookup fetches the clinic record for a subdomain key. The record is
// returned even when a status sentinel error is returned with it, so the
// guard layer can render a status-specific page.
func (d *Directory) Lookup(ctx context.Context, key string) (*models.Clinic, error) {
	var clinic models.Clinic
	err := d.db.WithContext(ctx).Where("subdominio = ?", key).First(&clinic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClinicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup for %q: %w", key, err)
	}

	switch clinic.Status {
	case models.ClinicStatusSuspended:
		return &clinic, ErrClinicSuspended
	case models.ClinicStatusCancelled:
		return &clinic, ErrClinicCancelled
	}
	return &clinic, nil
}

// IsStatusError reports whether err is one of the clinic status sentinels
// (as opposed to a transient lookup failure)
func IsStatusError(err error) bool {
	return errors.Is(err, ErrClinicNotFound) ||
		errors.Is(err, ErrClinicSuspended) ||
		errors.Is(err, ErrClinicCancelled)
}
