package holds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling/internal/domain"
	"github.com/clinicore/scheduling/internal/kafka"
	"github.com/clinicore/scheduling/internal/repository"
	"github.com/clinicore/scheduling/internal/validation"
)

type HoldUseCase interface {
	CreateHold(ctx context.Context, input CreateHoldInput) (*domain.BookingHold, error)
	CancelHold(ctx context.Context, tenantID, holdID uuid.UUID) (*domain.BookingHold, error)
	GetHold(ctx context.Context, tenantID, holdID uuid.UUID) (*domain.BookingHold, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreateHoldInput struct {
	TenantID               uuid.UUID  `json:"tenant_id"`
	ClinicID               uuid.UUID  `json:"clinic_id"`
	ProfessionalID         uuid.UUID  `json:"professional_id"`
	OriginalProfessionalID *uuid.UUID `json:"original_professional_id,omitempty"`
	CoverageID             *uuid.UUID `json:"coverage_id,omitempty"`
	PatientID              uuid.UUID  `json:"patient_id"`
	ServiceTypeID          uuid.UUID  `json:"service_type_id"`
	StartAt                time.Time  `json:"start_at"`
	EndAt                  time.Time  `json:"end_at"`
	RequestedBy            string     `json:"requested_by"`
}

type HoldService struct {
	holds    repository.HoldRepository
	producer Producer
	topic    string
	holdTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type HoldServiceOption func(*HoldService)

// WithClock replaces the wall clock, used by tests to pin TTLs.
func WithClock(now func() time.Time) HoldServiceOption {
	return func(s *HoldService) {
		s.now = now
	}
}

func NewHoldService(
	holds repository.HoldRepository,
	producer Producer,
	topic string,
	holdTTL time.Duration,
	logger *zap.Logger,
	opts ...HoldServiceOption,
) *HoldService {
	service := &HoldService{
		holds:    holds,
		producer: producer,
		topic:    topic,
		holdTTL:  holdTTL,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateHold reserves a slot for a short, policy-configured TTL. No
// conflicting-slot check happens here; slot exclusivity belongs to the
// availability service and, ultimately, to the unique hold consumption
// at booking creation.
func (s *HoldService) CreateHold(ctx context.Context, input CreateHoldInput) (*domain.BookingHold, error) {
	if err := validation.ValidateTimeRange(input.StartAt, input.EndAt); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	hold := &domain.BookingHold{
		ID:                     uuid.New(),
		TenantID:               input.TenantID,
		ClinicID:               input.ClinicID,
		ProfessionalID:         input.ProfessionalID,
		OriginalProfessionalID: input.OriginalProfessionalID,
		CoverageID:             input.CoverageID,
		PatientID:              input.PatientID,
		ServiceTypeID:          input.ServiceTypeID,
		StartAt:                input.StartAt.UTC(),
		EndAt:                  input.EndAt.UTC(),
		TTLExpiresAt:           now.Add(s.holdTTL),
		Status:                 domain.HoldStatusActive,
		Version:                1,
	}

	if err := s.holds.Create(ctx, hold); err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventHoldCreated, hold.TenantID, hold.ID, now, kafka.HoldCreatedPayload{
		HoldID:         hold.ID,
		ClinicID:       hold.ClinicID,
		ProfessionalID: hold.ProfessionalID,
		PatientID:      hold.PatientID,
		ServiceTypeID:  hold.ServiceTypeID,
		StartAt:        hold.StartAt,
		EndAt:          hold.EndAt,
		TTLExpiresAt:   hold.TTLExpiresAt,
		CreatedAt:      hold.CreatedAt,
	})

	s.logger.Info("hold created",
		zap.String("hold_id", hold.ID.String()),
		zap.String("tenant_id", hold.TenantID.String()),
		zap.Time("ttl_expires_at", hold.TTLExpiresAt))
	return hold, nil
}

// CancelHold releases an active hold that will not be converted into a
// booking.
func (s *HoldService) CancelHold(ctx context.Context, tenantID, holdID uuid.UUID) (*domain.BookingHold, error) {
	hold, err := s.holds.Get(ctx, tenantID, holdID)
	if err != nil {
		return nil, err
	}
	if !hold.Status.CanTransitionTo(domain.HoldStatusCancelled) {
		return nil, fmt.Errorf("hold %s is %s: %w", hold.ID, hold.Status, domain.ErrConflict)
	}

	cancelled, err := s.holds.UpdateStatus(ctx, tenantID, holdID, domain.HoldStatusCancelled, hold.Version)
	if err != nil {
		return nil, err
	}

	s.logger.Info("hold cancelled", zap.String("hold_id", holdID.String()), zap.String("tenant_id", tenantID.String()))
	return cancelled, nil
}

func (s *HoldService) GetHold(ctx context.Context, tenantID, holdID uuid.UUID) (*domain.BookingHold, error) {
	return s.holds.Get(ctx, tenantID, holdID)
}

func (s *HoldService) publish(ctx context.Context, event string, tenantID, key uuid.UUID, at time.Time, payload any) {
	if s.producer == nil || s.topic == "" {
		return
	}
	envelope, err := kafka.NewEnvelope(event, tenantID, at, payload)
	if err != nil {
		s.logger.Warn("build event envelope", zap.String("event", event), zap.Error(err))
		return
	}
	if err := s.producer.Publish(ctx, s.topic, key.String(), envelope); err != nil {
		s.logger.Warn("publish event", zap.String("event", event), zap.String("key", key.String()), zap.Error(err))
	}
}

var _ HoldUseCase = (*HoldService)(nil)
