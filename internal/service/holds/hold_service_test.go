package holds

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling/internal/domain"
	"github.com/clinicore/scheduling/internal/kafka"
)

type MockHoldRepository struct {
	mock.Mock
}

func (m *MockHoldRepository) Create(ctx context.Context, hold *domain.BookingHold) error {
	args := m.Called(ctx, hold)
	return args.Error(0)
}

func (m *MockHoldRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.BookingHold, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingHold), args.Error(1)
}

func (m *MockHoldRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, next domain.HoldStatus, expectedVersion int64) (*domain.BookingHold, error) {
	args := m.Called(ctx, tenantID, id, next, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingHold), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func TestCreateHold(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tenantID := uuid.New()

	input := CreateHoldInput{
		TenantID:       tenantID,
		ClinicID:       uuid.New(),
		ProfessionalID: uuid.New(),
		PatientID:      uuid.New(),
		ServiceTypeID:  uuid.New(),
		StartAt:        now.Add(2 * time.Hour),
		EndAt:          now.Add(3 * time.Hour),
		RequestedBy:    "patient",
	}

	t.Run("success pins ttl to policy", func(t *testing.T) {
		repo := &MockHoldRepository{}
		producer := &MockProducer{}
		service := NewHoldService(repo, producer, "scheduling.events", 10*time.Minute, zap.NewNop(),
			WithClock(func() time.Time { return now }))

		repo.On("Create", ctx, mock.AnythingOfType("*domain.BookingHold")).Return(nil).Once()
		producer.On("Publish", ctx, "scheduling.events", mock.Anything, mock.MatchedBy(func(v interface{}) bool {
			envelope, ok := v.(*kafka.Envelope)
			return ok && envelope.Event == kafka.EventHoldCreated && envelope.TenantID == tenantID
		})).Return(nil).Once()

		hold, err := service.CreateHold(ctx, input)
		assert.NoError(t, err)
		assert.Equal(t, domain.HoldStatusActive, hold.Status)
		assert.Equal(t, now.Add(10*time.Minute), hold.TTLExpiresAt)
		assert.Equal(t, int64(1), hold.Version)
		assert.False(t, hold.ExpiredAt(now.Add(9*time.Minute)))
		assert.True(t, hold.ExpiredAt(now.Add(10*time.Minute)))
		repo.AssertExpectations(t)
		producer.AssertExpectations(t)
	})

	t.Run("inverted time range", func(t *testing.T) {
		repo := &MockHoldRepository{}
		service := NewHoldService(repo, nil, "", 10*time.Minute, zap.NewNop())

		bad := input
		bad.StartAt, bad.EndAt = input.EndAt, input.StartAt
		_, err := service.CreateHold(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrPrecondition)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("zero-length range", func(t *testing.T) {
		service := NewHoldService(&MockHoldRepository{}, nil, "", 10*time.Minute, zap.NewNop())

		bad := input
		bad.EndAt = bad.StartAt
		_, err := service.CreateHold(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrPrecondition)
	})
}

func TestCancelHold(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("active hold cancels", func(t *testing.T) {
		repo := &MockHoldRepository{}
		service := NewHoldService(repo, nil, "", 10*time.Minute, zap.NewNop())

		hold := &domain.BookingHold{
			ID:       uuid.New(),
			TenantID: tenantID,
			Status:   domain.HoldStatusActive,
			Version:  1,
		}
		cancelled := *hold
		cancelled.Status = domain.HoldStatusCancelled
		cancelled.Version = 2

		repo.On("Get", ctx, tenantID, hold.ID).Return(hold, nil).Once()
		repo.On("UpdateStatus", ctx, tenantID, hold.ID, domain.HoldStatusCancelled, int64(1)).Return(&cancelled, nil).Once()

		got, err := service.CancelHold(ctx, tenantID, hold.ID)
		assert.NoError(t, err)
		assert.Equal(t, domain.HoldStatusCancelled, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("consumed hold conflicts", func(t *testing.T) {
		repo := &MockHoldRepository{}
		service := NewHoldService(repo, nil, "", 10*time.Minute, zap.NewNop())

		hold := &domain.BookingHold{
			ID:       uuid.New(),
			TenantID: tenantID,
			Status:   domain.HoldStatusConfirmed,
			Version:  2,
		}
		repo.On("Get", ctx, tenantID, hold.ID).Return(hold, nil).Once()

		_, err := service.CancelHold(ctx, tenantID, hold.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing hold", func(t *testing.T) {
		repo := &MockHoldRepository{}
		service := NewHoldService(repo, nil, "", 10*time.Minute, zap.NewNop())

		holdID := uuid.New()
		repo.On("Get", ctx, tenantID, holdID).Return(nil, domain.ErrNotFound).Once()

		_, err := service.CancelHold(ctx, tenantID, holdID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
