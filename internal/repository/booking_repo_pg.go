package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicore/scheduling/internal/domain"
)

type BookingRepository interface {
	// Create inserts the booking and, when the booking belongs to a
	// recurrence series, its occurrence row in the same transaction.
	// A second booking for the same hold violates the unique hold_id
	// index and surfaces as domain.ErrConflict.
	Create(ctx context.Context, booking *domain.Booking) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Booking, error)
	GetByHoldID(ctx context.Context, tenantID, holdID uuid.UUID) (*domain.Booking, error)
	ListForProfessionalRange(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]domain.Booking, error)
	Confirm(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int64) (*domain.Booking, error)
	Cancel(ctx context.Context, tenantID, id uuid.UUID, reason *string, expectedVersion int64) (*domain.Booking, error)
	MarkNoShow(ctx context.Context, tenantID, id uuid.UUID, markedAt time.Time, expectedVersion int64) (*domain.Booking, error)
	UpdatePaymentStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.PaymentStatus, expectedVersion int64) (*domain.Booking, error)
	// Reschedule moves the time range and, for recurring bookings,
	// increments the occurrence's reschedule counter atomically with it.
	Reschedule(ctx context.Context, tenantID, id uuid.UUID, newStart, newEnd time.Time, expectedVersion int64, incrementOccurrence bool) (*domain.Booking, error)
}

const bookingColumns = `id, tenant_id, clinic_id, professional_id, original_professional_id, coverage_id, patient_id, source, status, payment_status, hold_id, hold_expires_at, start_at, end_at, timezone, late_tolerance_minutes, recurrence_series_id, cancellation_reason, pricing_split, preconditions_passed, anamnese_required, anamnese_override_reason, no_show_marked_at, version, created_at, updated_at`

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create booking: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `INSERT INTO bookings (id, tenant_id, clinic_id, professional_id, original_professional_id, coverage_id, patient_id, source, status, payment_status, hold_id, hold_expires_at, start_at, end_at, timezone, late_tolerance_minutes, recurrence_series_id, cancellation_reason, pricing_split, preconditions_passed, anamnese_required, anamnese_override_reason, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING created_at, updated_at`,
		booking.ID, booking.TenantID, booking.ClinicID, booking.ProfessionalID, booking.OriginalProfessionalID, booking.CoverageID,
		booking.PatientID, booking.Source, booking.Status, booking.PaymentStatus, booking.HoldID, booking.HoldExpiresAt,
		booking.StartAt, booking.EndAt, booking.Timezone, booking.LateToleranceMinutes, booking.RecurrenceSeriesID,
		booking.CancellationReason, booking.PricingSplit, booking.PreconditionsPassed, booking.AnamneseRequired,
		booking.AnamneseOverrideReason, booking.Version).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("hold %s already consumed: %w", booking.HoldID, domain.ErrConflict)
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if booking.RecurrenceSeriesID != nil {
		_, err = tx.Exec(ctx, `INSERT INTO recurrence_occurrences (id, tenant_id, series_id, booking_id, reschedules_count)
			VALUES ($1, $2, $3, $4, 0)`,
			uuid.New(), booking.TenantID, *booking.RecurrenceSeriesID, booking.ID)
		if err != nil {
			return fmt.Errorf("insert occurrence: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (r *PGBookingRepository) GetByHoldID(ctx context.Context, tenantID, holdID uuid.UUID) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE hold_id=$1 AND tenant_id=$2`, holdID, tenantID)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking for hold %s: %w", holdID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get booking by hold: %w", err)
	}
	return booking, nil
}

func (r *PGBookingRepository) ListForProfessionalRange(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE tenant_id=$1 AND professional_id=$2 AND start_at >= $3 AND start_at < $4
		ORDER BY start_at`, tenantID, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) Confirm(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int64) (*domain.Booking, error) {
	return r.casUpdate(ctx, id, expectedVersion, `UPDATE bookings SET status=$1, payment_status=$2, version=version+1, updated_at=now()
		WHERE id=$3 AND tenant_id=$4 AND version=$5
		RETURNING `+bookingColumns,
		domain.BookingStatusConfirmed, domain.PaymentStatusApproved, id, tenantID, expectedVersion)
}

func (r *PGBookingRepository) Cancel(ctx context.Context, tenantID, id uuid.UUID, reason *string, expectedVersion int64) (*domain.Booking, error) {
	return r.casUpdate(ctx, id, expectedVersion, `UPDATE bookings SET status=$1, cancellation_reason=$2, version=version+1, updated_at=now()
		WHERE id=$3 AND tenant_id=$4 AND version=$5
		RETURNING `+bookingColumns,
		domain.BookingStatusCancelled, reason, id, tenantID, expectedVersion)
}

func (r *PGBookingRepository) MarkNoShow(ctx context.Context, tenantID, id uuid.UUID, markedAt time.Time, expectedVersion int64) (*domain.Booking, error) {
	return r.casUpdate(ctx, id, expectedVersion, `UPDATE bookings SET status=$1, no_show_marked_at=$2, version=version+1, updated_at=now()
		WHERE id=$3 AND tenant_id=$4 AND version=$5
		RETURNING `+bookingColumns,
		domain.BookingStatusNoShow, markedAt, id, tenantID, expectedVersion)
}

func (r *PGBookingRepository) UpdatePaymentStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.PaymentStatus, expectedVersion int64) (*domain.Booking, error) {
	return r.casUpdate(ctx, id, expectedVersion, `UPDATE bookings SET payment_status=$1, version=version+1, updated_at=now()
		WHERE id=$2 AND tenant_id=$3 AND version=$4
		RETURNING `+bookingColumns,
		status, id, tenantID, expectedVersion)
}

func (r *PGBookingRepository) Reschedule(ctx context.Context, tenantID, id uuid.UUID, newStart, newEnd time.Time, expectedVersion int64, incrementOccurrence bool) (*domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `UPDATE bookings SET start_at=$1, end_at=$2, version=version+1, updated_at=now()
		WHERE id=$3 AND tenant_id=$4 AND version=$5
		RETURNING `+bookingColumns,
		newStart, newEnd, id, tenantID, expectedVersion)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s version %d: %w", id, expectedVersion, domain.ErrConflict)
		}
		return nil, fmt.Errorf("reschedule booking: %w", err)
	}

	if incrementOccurrence {
		cmd, err := tx.Exec(ctx, `UPDATE recurrence_occurrences SET reschedules_count=reschedules_count+1, updated_at=now()
			WHERE booking_id=$1 AND tenant_id=$2`, id, tenantID)
		if err != nil {
			return nil, fmt.Errorf("increment occurrence: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return nil, fmt.Errorf("occurrence for booking %s: %w", id, domain.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}
	return booking, nil
}

func (r *PGBookingRepository) casUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, sql string, args ...any) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, sql, args...)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s version %d: %w", id, expectedVersion, domain.ErrConflict)
		}
		return nil, fmt.Errorf("update booking: %w", err)
	}
	return booking, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.TenantID, &b.ClinicID, &b.ProfessionalID, &b.OriginalProfessionalID, &b.CoverageID,
		&b.PatientID, &b.Source, &b.Status, &b.PaymentStatus, &b.HoldID, &b.HoldExpiresAt, &b.StartAt, &b.EndAt,
		&b.Timezone, &b.LateToleranceMinutes, &b.RecurrenceSeriesID, &b.CancellationReason, &b.PricingSplit,
		&b.PreconditionsPassed, &b.AnamneseRequired, &b.AnamneseOverrideReason, &b.NoShowMarkedAt,
		&b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
