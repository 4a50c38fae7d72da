package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicore/scheduling/internal/domain"
)

type HoldRepository interface {
	Create(ctx context.Context, hold *domain.BookingHold) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.BookingHold, error)
	// UpdateStatus performs the optimistic compare-and-swap
	// ACTIVE -> next. Zero matched rows means another writer advanced
	// the hold first and surfaces as domain.ErrConflict.
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, next domain.HoldStatus, expectedVersion int64) (*domain.BookingHold, error)
}

const holdColumns = `id, tenant_id, clinic_id, professional_id, original_professional_id, coverage_id, patient_id, service_type_id, start_at, end_at, ttl_expires_at, status, version, created_at, updated_at`

type PGHoldRepository struct {
	db DB
}

func NewHoldRepository(db DB) HoldRepository {
	return &PGHoldRepository{db: db}
}

func (r *PGHoldRepository) Create(ctx context.Context, hold *domain.BookingHold) error {
	row := r.db.QueryRow(ctx, `INSERT INTO booking_holds (id, tenant_id, clinic_id, professional_id, original_professional_id, coverage_id, patient_id, service_type_id, start_at, end_at, ttl_expires_at, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		hold.ID, hold.TenantID, hold.ClinicID, hold.ProfessionalID, hold.OriginalProfessionalID, hold.CoverageID,
		hold.PatientID, hold.ServiceTypeID, hold.StartAt, hold.EndAt, hold.TTLExpiresAt, hold.Status, hold.Version)
	if err := row.Scan(&hold.CreatedAt, &hold.UpdatedAt); err != nil {
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

func (r *PGHoldRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.BookingHold, error) {
	row := r.db.QueryRow(ctx, `SELECT `+holdColumns+` FROM booking_holds WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	hold, err := scanHold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("hold %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get hold: %w", err)
	}
	return hold, nil
}

func (r *PGHoldRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, next domain.HoldStatus, expectedVersion int64) (*domain.BookingHold, error) {
	row := r.db.QueryRow(ctx, `UPDATE booking_holds SET status=$1, version=version+1, updated_at=now()
		WHERE id=$2 AND tenant_id=$3 AND version=$4 AND status=$5
		RETURNING `+holdColumns,
		next, id, tenantID, expectedVersion, domain.HoldStatusActive)
	hold, err := scanHold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("hold %s version %d: %w", id, expectedVersion, domain.ErrConflict)
		}
		return nil, fmt.Errorf("update hold status: %w", err)
	}
	return hold, nil
}

func scanHold(row pgx.Row) (*domain.BookingHold, error) {
	var h domain.BookingHold
	if err := row.Scan(&h.ID, &h.TenantID, &h.ClinicID, &h.ProfessionalID, &h.OriginalProfessionalID, &h.CoverageID,
		&h.PatientID, &h.ServiceTypeID, &h.StartAt, &h.EndAt, &h.TTLExpiresAt, &h.Status, &h.Version, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

var _ HoldRepository = (*PGHoldRepository)(nil)
