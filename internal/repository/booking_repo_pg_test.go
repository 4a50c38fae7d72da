package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling/internal/domain"
)

var bookingColumnNames = []string{
	"id", "tenant_id", "clinic_id", "professional_id", "original_professional_id", "coverage_id",
	"patient_id", "source", "status", "payment_status", "hold_id", "hold_expires_at", "start_at", "end_at",
	"timezone", "late_tolerance_minutes", "recurrence_series_id", "cancellation_reason", "pricing_split",
	"preconditions_passed", "anamnese_required", "anamnese_override_reason", "no_show_marked_at",
	"version", "created_at", "updated_at",
}

func bookingRows(b domain.Booking) *pgxmock.Rows {
	return pgxmock.NewRows(bookingColumnNames).AddRow(
		b.ID, b.TenantID, b.ClinicID, b.ProfessionalID, b.OriginalProfessionalID, b.CoverageID,
		b.PatientID, b.Source, b.Status, b.PaymentStatus, b.HoldID, b.HoldExpiresAt, b.StartAt, b.EndAt,
		b.Timezone, b.LateToleranceMinutes, b.RecurrenceSeriesID, b.CancellationReason, b.PricingSplit,
		b.PreconditionsPassed, b.AnamneseRequired, b.AnamneseOverrideReason, b.NoShowMarkedAt,
		b.Version, b.CreatedAt, b.UpdatedAt,
	)
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleBooking(tenantID uuid.UUID) domain.Booking {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return domain.Booking{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		ClinicID:             uuid.New(),
		ProfessionalID:       uuid.New(),
		PatientID:            uuid.New(),
		Source:               "portal",
		Status:               domain.BookingStatusScheduled,
		PaymentStatus:        domain.PaymentStatusPending,
		HoldID:               uuid.New(),
		HoldExpiresAt:        now.Add(10 * time.Minute),
		StartAt:              now.Add(2 * time.Hour),
		EndAt:                now.Add(3 * time.Hour),
		Timezone:             "America/Sao_Paulo",
		LateToleranceMinutes: 15,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestBookingRepository_Create(t *testing.T) {
	tenantID := uuid.New()

	t.Run("plain booking", func(t *testing.T) {
		mockDB, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockDB.Close()

		booking := sampleBooking(tenantID)

		mockDB.ExpectBegin()
		mockDB.ExpectQuery("INSERT INTO bookings").
			WithArgs(anyArgs(23)...).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(booking.CreatedAt, booking.UpdatedAt))
		mockDB.ExpectCommit()

		repo := NewBookingRepository(mockDB)
		assert.NoError(t, repo.Create(context.Background(), &booking))
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("recurring booking writes occurrence row", func(t *testing.T) {
		mockDB, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockDB.Close()

		seriesID := uuid.New()
		booking := sampleBooking(tenantID)
		booking.RecurrenceSeriesID = &seriesID

		mockDB.ExpectBegin()
		mockDB.ExpectQuery("INSERT INTO bookings").
			WithArgs(anyArgs(23)...).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(booking.CreatedAt, booking.UpdatedAt))
		mockDB.ExpectExec("INSERT INTO recurrence_occurrences").
			WithArgs(pgxmock.AnyArg(), booking.TenantID, seriesID, booking.ID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockDB.ExpectCommit()

		repo := NewBookingRepository(mockDB)
		assert.NoError(t, repo.Create(context.Background(), &booking))
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("consumed hold conflicts", func(t *testing.T) {
		mockDB, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockDB.Close()

		booking := sampleBooking(tenantID)

		mockDB.ExpectBegin()
		mockDB.ExpectQuery("INSERT INTO bookings").
			WithArgs(anyArgs(23)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_bookings_hold_id"})
		mockDB.ExpectRollback()

		repo := NewBookingRepository(mockDB)
		err = repo.Create(context.Background(), &booking)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetByHoldID(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	tenantID := uuid.New()
	repo := NewBookingRepository(mockDB)

	t.Run("found", func(t *testing.T) {
		booking := sampleBooking(tenantID)
		mockDB.ExpectQuery("SELECT (.+) FROM bookings WHERE hold_id").
			WithArgs(booking.HoldID, tenantID).
			WillReturnRows(bookingRows(booking))

		got, err := repo.GetByHoldID(context.Background(), tenantID, booking.HoldID)
		assert.NoError(t, err)
		assert.Equal(t, booking.ID, got.ID)
	})

	t.Run("unconsumed hold", func(t *testing.T) {
		holdID := uuid.New()
		mockDB.ExpectQuery("SELECT (.+) FROM bookings WHERE hold_id").
			WithArgs(holdID, tenantID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByHoldID(context.Background(), tenantID, holdID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestBookingRepository_ListForProfessionalRange(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	tenantID := uuid.New()
	booking := sampleBooking(tenantID)
	from := booking.StartAt.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	mockDB.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(tenantID, booking.ProfessionalID, from, to).
		WillReturnRows(bookingRows(booking))

	repo := NewBookingRepository(mockDB)
	got, err := repo.ListForProfessionalRange(context.Background(), tenantID, booking.ProfessionalID, from, to)
	assert.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, booking.ID, got[0].ID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestBookingRepository_CASUpdates(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	tenantID := uuid.New()
	repo := NewBookingRepository(mockDB)

	t.Run("cancel stores reason", func(t *testing.T) {
		booking := sampleBooking(tenantID)
		reason := "patient request"
		cancelled := booking
		cancelled.Status = domain.BookingStatusCancelled
		cancelled.CancellationReason = &reason
		cancelled.Version = 2

		mockDB.ExpectQuery("UPDATE bookings SET status").
			WithArgs(domain.BookingStatusCancelled, &reason, booking.ID, tenantID, int64(1)).
			WillReturnRows(bookingRows(cancelled))

		got, err := repo.Cancel(context.Background(), tenantID, booking.ID, &reason, 1)
		assert.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCancelled, got.Status)
		require.NotNil(t, got.CancellationReason)
		assert.Equal(t, reason, *got.CancellationReason)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		id := uuid.New()
		mockDB.ExpectQuery("UPDATE bookings SET payment_status").
			WithArgs(domain.PaymentStatusApproved, id, tenantID, int64(3)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.UpdatePaymentStatus(context.Background(), tenantID, id, domain.PaymentStatusApproved, 3)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestBookingRepository_Reschedule(t *testing.T) {
	tenantID := uuid.New()

	t.Run("recurring increments occurrence in the same tx", func(t *testing.T) {
		mockDB, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockDB.Close()

		booking := sampleBooking(tenantID)
		newStart := booking.StartAt.Add(24 * time.Hour)
		newEnd := booking.EndAt.Add(24 * time.Hour)
		updated := booking
		updated.StartAt = newStart
		updated.EndAt = newEnd
		updated.Version = 2

		mockDB.ExpectBegin()
		mockDB.ExpectQuery("UPDATE bookings SET start_at").
			WithArgs(newStart, newEnd, booking.ID, tenantID, int64(1)).
			WillReturnRows(bookingRows(updated))
		mockDB.ExpectExec("UPDATE recurrence_occurrences SET reschedules_count").
			WithArgs(booking.ID, tenantID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockDB.ExpectCommit()

		repo := NewBookingRepository(mockDB)
		got, err := repo.Reschedule(context.Background(), tenantID, booking.ID, newStart, newEnd, 1, true)
		assert.NoError(t, err)
		assert.Equal(t, newStart, got.StartAt)
		assert.Equal(t, int64(2), got.Version)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("missing occurrence aborts the move", func(t *testing.T) {
		mockDB, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockDB.Close()

		booking := sampleBooking(tenantID)
		newStart := booking.StartAt.Add(24 * time.Hour)
		newEnd := booking.EndAt.Add(24 * time.Hour)
		updated := booking
		updated.StartAt = newStart
		updated.EndAt = newEnd
		updated.Version = 2

		mockDB.ExpectBegin()
		mockDB.ExpectQuery("UPDATE bookings SET start_at").
			WithArgs(newStart, newEnd, booking.ID, tenantID, int64(1)).
			WillReturnRows(bookingRows(updated))
		mockDB.ExpectExec("UPDATE recurrence_occurrences SET reschedules_count").
			WithArgs(booking.ID, tenantID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockDB.ExpectRollback()

		repo := NewBookingRepository(mockDB)
		_, err = repo.Reschedule(context.Background(), tenantID, booking.ID, newStart, newEnd, 1, true)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		mockDB, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockDB.Close()

		booking := sampleBooking(tenantID)
		newStart := booking.StartAt.Add(24 * time.Hour)
		newEnd := booking.EndAt.Add(24 * time.Hour)

		mockDB.ExpectBegin()
		mockDB.ExpectQuery("UPDATE bookings SET start_at").
			WithArgs(newStart, newEnd, booking.ID, tenantID, int64(5)).
			WillReturnError(pgx.ErrNoRows)
		mockDB.ExpectRollback()

		repo := NewBookingRepository(mockDB)
		_, err = repo.Reschedule(context.Background(), tenantID, booking.ID, newStart, newEnd, 5, false)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}
