package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicore/scheduling/internal/domain"
)

type RecurrenceRepository interface {
	GetSeries(ctx context.Context, tenantID, id uuid.UUID) (*domain.RecurrenceSeries, error)
	GetOccurrenceByBooking(ctx context.Context, tenantID, bookingID uuid.UUID) (*domain.RecurrenceOccurrence, error)
	// SeriesUsage sums the reschedule counters of every occurrence in
	// the series.
	SeriesUsage(ctx context.Context, tenantID, seriesID uuid.UUID) (int, error)
}

type PGRecurrenceRepository struct {
	db DB
}

func NewRecurrenceRepository(db DB) RecurrenceRepository {
	return &PGRecurrenceRepository{db: db}
}

func (r *PGRecurrenceRepository) GetSeries(ctx context.Context, tenantID, id uuid.UUID) (*domain.RecurrenceSeries, error) {
	row := r.db.QueryRow(ctx, `SELECT id, tenant_id, clinic_id, max_reschedules_per_occurrence, max_reschedules_per_series, created_at, updated_at
		FROM recurrence_series WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	var s domain.RecurrenceSeries
	if err := row.Scan(&s.ID, &s.TenantID, &s.ClinicID, &s.MaxReschedulesPerOccurrence, &s.MaxReschedulesPerSeries, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("series %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get series: %w", err)
	}
	return &s, nil
}

func (r *PGRecurrenceRepository) GetOccurrenceByBooking(ctx context.Context, tenantID, bookingID uuid.UUID) (*domain.RecurrenceOccurrence, error) {
	row := r.db.QueryRow(ctx, `SELECT id, tenant_id, series_id, booking_id, reschedules_count, created_at, updated_at
		FROM recurrence_occurrences WHERE booking_id=$1 AND tenant_id=$2`, bookingID, tenantID)
	var o domain.RecurrenceOccurrence
	if err := row.Scan(&o.ID, &o.TenantID, &o.SeriesID, &o.BookingID, &o.ReschedulesCount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("occurrence for booking %s: %w", bookingID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	return &o, nil
}

func (r *PGRecurrenceRepository) SeriesUsage(ctx context.Context, tenantID, seriesID uuid.UUID) (int, error) {
	row := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(reschedules_count), 0) FROM recurrence_occurrences WHERE series_id=$1 AND tenant_id=$2`, seriesID, tenantID)
	var usage int
	if err := row.Scan(&usage); err != nil {
		return 0, fmt.Errorf("series usage: %w", err)
	}
	return usage, nil
}

var _ RecurrenceRepository = (*PGRecurrenceRepository)(nil)
