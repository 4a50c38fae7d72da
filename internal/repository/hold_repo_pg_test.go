package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling/internal/domain"
)

var holdColumnNames = []string{
	"id", "tenant_id", "clinic_id", "professional_id", "original_professional_id", "coverage_id",
	"patient_id", "service_type_id", "start_at", "end_at", "ttl_expires_at", "status", "version",
	"created_at", "updated_at",
}

func holdRows(h domain.BookingHold) *pgxmock.Rows {
	return pgxmock.NewRows(holdColumnNames).AddRow(
		h.ID, h.TenantID, h.ClinicID, h.ProfessionalID, h.OriginalProfessionalID, h.CoverageID,
		h.PatientID, h.ServiceTypeID, h.StartAt, h.EndAt, h.TTLExpiresAt, h.Status, h.Version,
		h.CreatedAt, h.UpdatedAt,
	)
}

func sampleHold(tenantID uuid.UUID) domain.BookingHold {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return domain.BookingHold{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ClinicID:       uuid.New(),
		ProfessionalID: uuid.New(),
		PatientID:      uuid.New(),
		ServiceTypeID:  uuid.New(),
		StartAt:        now.Add(2 * time.Hour),
		EndAt:          now.Add(3 * time.Hour),
		TTLExpiresAt:   now.Add(10 * time.Minute),
		Status:         domain.HoldStatusActive,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestHoldRepository_Create(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	tenantID := uuid.New()
	hold := sampleHold(tenantID)

	mockDB.ExpectQuery("INSERT INTO booking_holds").
		WithArgs(hold.ID, hold.TenantID, hold.ClinicID, hold.ProfessionalID, hold.OriginalProfessionalID, hold.CoverageID,
			hold.PatientID, hold.ServiceTypeID, hold.StartAt, hold.EndAt, hold.TTLExpiresAt, hold.Status, hold.Version).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(hold.CreatedAt, hold.UpdatedAt))

	repo := NewHoldRepository(mockDB)
	err = repo.Create(context.Background(), &hold)
	assert.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestHoldRepository_Get(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	tenantID := uuid.New()
	repo := NewHoldRepository(mockDB)

	t.Run("found", func(t *testing.T) {
		hold := sampleHold(tenantID)
		mockDB.ExpectQuery("SELECT (.+) FROM booking_holds").
			WithArgs(hold.ID, tenantID).
			WillReturnRows(holdRows(hold))

		got, err := repo.Get(context.Background(), tenantID, hold.ID)
		assert.NoError(t, err)
		assert.Equal(t, hold.ID, got.ID)
		assert.Equal(t, domain.HoldStatusActive, got.Status)
	})

	t.Run("missing", func(t *testing.T) {
		id := uuid.New()
		mockDB.ExpectQuery("SELECT (.+) FROM booking_holds").
			WithArgs(id, tenantID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(context.Background(), tenantID, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestHoldRepository_UpdateStatus(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	tenantID := uuid.New()
	repo := NewHoldRepository(mockDB)

	t.Run("cas success", func(t *testing.T) {
		hold := sampleHold(tenantID)
		updated := hold
		updated.Status = domain.HoldStatusConfirmed
		updated.Version = 2

		mockDB.ExpectQuery("UPDATE booking_holds").
			WithArgs(domain.HoldStatusConfirmed, hold.ID, tenantID, int64(1), domain.HoldStatusActive).
			WillReturnRows(holdRows(updated))

		got, err := repo.UpdateStatus(context.Background(), tenantID, hold.ID, domain.HoldStatusConfirmed, 1)
		assert.NoError(t, err)
		assert.Equal(t, domain.HoldStatusConfirmed, got.Status)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		id := uuid.New()
		mockDB.ExpectQuery("UPDATE booking_holds").
			WithArgs(domain.HoldStatusCancelled, id, tenantID, int64(1), domain.HoldStatusActive).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.UpdateStatus(context.Background(), tenantID, id, domain.HoldStatusCancelled, 1)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	assert.NoError(t, mockDB.ExpectationsWereMet())
}
