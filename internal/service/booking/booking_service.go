package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling/internal/domain"
	"github.com/clinicore/scheduling/internal/kafka"
	"github.com/clinicore/scheduling/internal/repository"
	"github.com/clinicore/scheduling/internal/validation"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, input ConfirmBookingInput) (*domain.Booking, error)
	RescheduleBooking(ctx context.Context, input RescheduleBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, input CancelBookingInput) (*domain.Booking, error)
	RecordPaymentStatus(ctx context.Context, input RecordPaymentStatusInput) (*domain.Booking, error)
	MarkBookingNoShow(ctx context.Context, input MarkNoShowInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, tenantID, id uuid.UUID) (*domain.Booking, error)
	ListProfessionalDay(ctx context.Context, tenantID, professionalID uuid.UUID, day time.Time) ([]domain.Booking, error)
}

// Cache is the day-schedule read cache. A nil cache disables caching.
type Cache interface {
	GetDaySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, day string) ([]domain.Booking, error)
	SetDaySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, day string, bookings []domain.Booking) error
	InvalidateDaySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, days ...string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreateBookingInput struct {
	TenantID               uuid.UUID            `json:"tenant_id"`
	HoldID                 uuid.UUID            `json:"hold_id"`
	Source                 string               `json:"source"`
	Timezone               string               `json:"timezone"`
	LateToleranceMinutes   *int                 `json:"late_tolerance_minutes,omitempty"`
	RecurrenceSeriesID     *uuid.UUID           `json:"recurrence_series_id,omitempty"`
	PricingSplit           *domain.PricingSplit `json:"pricing_split,omitempty"`
	PreconditionsPassed    bool                 `json:"preconditions_passed"`
	AnamneseRequired       bool                 `json:"anamnese_required"`
	AnamneseOverrideReason *string              `json:"anamnese_override_reason,omitempty"`
	RequestedAt            *time.Time           `json:"requested_at,omitempty"`
}

type ConfirmBookingInput struct {
	TenantID      uuid.UUID            `json:"tenant_id"`
	BookingID     uuid.UUID            `json:"booking_id"`
	HoldID        uuid.UUID            `json:"hold_id"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	ConfirmedAt   *time.Time           `json:"confirmed_at,omitempty"`
}

type RescheduleBookingInput struct {
	TenantID        uuid.UUID  `json:"tenant_id"`
	BookingID       uuid.UUID  `json:"booking_id"`
	ExpectedVersion int64      `json:"expected_version"`
	NewStartAt      time.Time  `json:"new_start_at"`
	NewEndAt        time.Time  `json:"new_end_at"`
	Reason          *string    `json:"reason,omitempty"`
	RescheduledAt   *time.Time `json:"rescheduled_at,omitempty"`
}

type CancelBookingInput struct {
	TenantID        uuid.UUID  `json:"tenant_id"`
	BookingID       uuid.UUID  `json:"booking_id"`
	ExpectedVersion int64      `json:"expected_version"`
	Reason          *string    `json:"reason,omitempty"`
	CancelledBy     string     `json:"cancelled_by"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

type RecordPaymentStatusInput struct {
	TenantID        uuid.UUID            `json:"tenant_id"`
	BookingID       uuid.UUID            `json:"booking_id"`
	ExpectedVersion int64                `json:"expected_version"`
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
}

type MarkNoShowInput struct {
	TenantID        uuid.UUID `json:"tenant_id"`
	BookingID       uuid.UUID `json:"booking_id"`
	ExpectedVersion int64     `json:"expected_version"`
	MarkedAt        time.Time `json:"marked_at"`
}

type BookingService struct {
	bookings             repository.BookingRepository
	holds                repository.HoldRepository
	recurrence           repository.RecurrenceRepository
	cache                Cache
	producer             Producer
	topic                string
	defaultLateTolerance int
	logger               *zap.Logger
	now                  func() time.Time
}

type BookingServiceOption func(*BookingService)

// WithClock replaces the wall clock, used by tests to pin reference
// timestamps.
func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	holds repository.HoldRepository,
	recurrence repository.RecurrenceRepository,
	cache Cache,
	producer Producer,
	topic string,
	defaultLateTolerance int,
	logger *zap.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:             bookings,
		holds:                holds,
		recurrence:           recurrence,
		cache:                cache,
		producer:             producer,
		topic:                topic,
		defaultLateTolerance: defaultLateTolerance,
		logger:               logger,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking converts a fresh, unconsumed hold into a SCHEDULED
// booking. The hold flips ACTIVE -> CONFIRMED under its last-read
// version; the unique hold_id index backstops the race of two
// simultaneous create attempts, the loser receiving a conflict.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	at := s.referenceTime(input.RequestedAt)

	hold, err := s.holds.Get(ctx, input.TenantID, input.HoldID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateHoldForBookingCreation(hold, at); err != nil {
		return nil, err
	}

	if _, err := s.bookings.GetByHoldID(ctx, input.TenantID, input.HoldID); err == nil {
		return nil, fmt.Errorf("hold %s already consumed: %w", input.HoldID, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hold, err = s.holds.UpdateStatus(ctx, input.TenantID, input.HoldID, domain.HoldStatusConfirmed, hold.Version)
	if err != nil {
		return nil, err
	}

	lateTolerance := s.defaultLateTolerance
	if input.LateToleranceMinutes != nil {
		lateTolerance = *input.LateToleranceMinutes
	}

	booking := &domain.Booking{
		ID:                     uuid.New(),
		TenantID:               hold.TenantID,
		ClinicID:               hold.ClinicID,
		ProfessionalID:         hold.ProfessionalID,
		OriginalProfessionalID: hold.OriginalProfessionalID,
		CoverageID:             hold.CoverageID,
		PatientID:              hold.PatientID,
		Source:                 input.Source,
		Status:                 domain.BookingStatusScheduled,
		PaymentStatus:          domain.PaymentStatusPending,
		HoldID:                 hold.ID,
		HoldExpiresAt:          hold.TTLExpiresAt,
		StartAt:                hold.StartAt,
		EndAt:                  hold.EndAt,
		Timezone:               input.Timezone,
		LateToleranceMinutes:   lateTolerance,
		RecurrenceSeriesID:     input.RecurrenceSeriesID,
		PricingSplit:           input.PricingSplit,
		PreconditionsPassed:    input.PreconditionsPassed,
		AnamneseRequired:       input.AnamneseRequired,
		AnamneseOverrideReason: input.AnamneseOverrideReason,
		Version:                1,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.invalidateSchedule(ctx, booking, booking.StartAt)
	s.publish(ctx, kafka.EventBookingCreated, booking.TenantID, booking.ID, at, kafka.BookingCreatedPayload{
		BookingID:      booking.ID,
		ClinicID:       booking.ClinicID,
		ProfessionalID: booking.ProfessionalID,
		PatientID:      booking.PatientID,
		StartAt:        booking.StartAt,
		EndAt:          booking.EndAt,
		Source:         booking.Source,
		Timezone:       booking.Timezone,
		CreatedAt:      booking.CreatedAt,
	})

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("hold_id", hold.ID.String()),
		zap.String("tenant_id", booking.TenantID.String()))
	return booking, nil
}

// ConfirmBooking moves a booking to CONFIRMED once its payment is
// approved and while the originating hold's TTL still stands.
func (s *BookingService) ConfirmBooking(ctx context.Context, input ConfirmBookingInput) (*domain.Booking, error) {
	at := s.referenceTime(input.ConfirmedAt)

	booking, err := s.bookings.Get(ctx, input.TenantID, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.HoldID != input.HoldID {
		return nil, fmt.Errorf("hold %s does not belong to booking %s: %w", input.HoldID, booking.ID, domain.ErrConflict)
	}

	hold, err := s.holds.Get(ctx, input.TenantID, input.HoldID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateConfirmation(hold, booking, input.PaymentStatus, at); err != nil {
		return nil, err
	}

	// The hold is normally CONFIRMED already from booking creation;
	// only a still-active hold needs the transition here.
	if hold.Status == domain.HoldStatusActive {
		if _, err := s.holds.UpdateStatus(ctx, input.TenantID, hold.ID, domain.HoldStatusConfirmed, hold.Version); err != nil {
			return nil, err
		}
	}

	updated, err := s.bookings.Confirm(ctx, input.TenantID, input.BookingID, booking.Version)
	if err != nil {
		return nil, err
	}

	s.invalidateSchedule(ctx, updated, updated.StartAt)
	s.publish(ctx, kafka.EventBookingConfirmed, updated.TenantID, updated.ID, at, kafka.BookingConfirmedPayload{
		BookingID:              updated.ID,
		ClinicID:               updated.ClinicID,
		ProfessionalID:         updated.ProfessionalID,
		PatientID:              updated.PatientID,
		StartAt:                updated.StartAt,
		EndAt:                  updated.EndAt,
		Source:                 updated.Source,
		ConfirmedAt:            at,
		OriginalProfessionalID: updated.OriginalProfessionalID,
		CoverageID:             updated.CoverageID,
	})

	s.logger.Info("booking confirmed",
		zap.String("booking_id", updated.ID.String()),
		zap.String("tenant_id", updated.TenantID.String()))
	return updated, nil
}

// RescheduleBooking moves the time range. For recurring bookings the
// series and occurrence quotas gate the move, and the occurrence
// counter advances atomically with the time-range update.
func (s *BookingService) RescheduleBooking(ctx context.Context, input RescheduleBookingInput) (*domain.Booking, error) {
	if err := validation.ValidateTimeRange(input.NewStartAt, input.NewEndAt); err != nil {
		return nil, err
	}
	at := s.referenceTime(input.RescheduledAt)

	booking, err := s.bookings.Get(ctx, input.TenantID, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, fmt.Errorf("booking %s is %s: %w", booking.ID, booking.Status, domain.ErrConflict)
	}

	recurring := booking.RecurrenceSeriesID != nil
	if recurring {
		if err := s.checkRescheduleQuota(ctx, booking); err != nil {
			return nil, err
		}
	}

	previousStart, previousEnd := booking.StartAt, booking.EndAt
	updated, err := s.bookings.Reschedule(ctx, input.TenantID, input.BookingID, input.NewStartAt.UTC(), input.NewEndAt.UTC(), input.ExpectedVersion, recurring)
	if err != nil {
		return nil, err
	}

	s.invalidateSchedule(ctx, updated, previousStart, updated.StartAt)
	s.publish(ctx, kafka.EventBookingRescheduled, updated.TenantID, updated.ID, at, kafka.BookingRescheduledPayload{
		BookingID:       updated.ID,
		PreviousStartAt: previousStart,
		PreviousEndAt:   previousEnd,
		NewStartAt:      updated.StartAt,
		NewEndAt:        updated.EndAt,
		RescheduledAt:   at,
	})

	s.logger.Info("booking rescheduled",
		zap.String("booking_id", updated.ID.String()),
		zap.Time("new_start_at", updated.StartAt))
	return updated, nil
}

// CancelBooking is one-way: terminal bookings cannot be cancelled
// again or un-finished.
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*domain.Booking, error) {
	at := s.referenceTime(input.CancelledAt)

	booking, err := s.bookings.Get(ctx, input.TenantID, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, fmt.Errorf("booking %s is %s: %w", booking.ID, booking.Status, domain.ErrConflict)
	}

	updated, err := s.bookings.Cancel(ctx, input.TenantID, input.BookingID, input.Reason, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	s.invalidateSchedule(ctx, updated, updated.StartAt)
	s.publish(ctx, kafka.EventBookingCancelled, updated.TenantID, updated.ID, at, kafka.BookingCancelledPayload{
		BookingID:   updated.ID,
		CancelledBy: input.CancelledBy,
		Reason:      input.Reason,
		CancelledAt: at,
	})

	s.logger.Info("booking cancelled",
		zap.String("booking_id", updated.ID.String()),
		zap.String("tenant_id", updated.TenantID.String()))
	return updated, nil
}

// RecordPaymentStatus updates the payment leg of the booking. Asking
// for the status the booking already has is a designed no-op: no store
// write, no event.
func (s *BookingService) RecordPaymentStatus(ctx context.Context, input RecordPaymentStatusInput) (*domain.Booking, error) {
	booking, err := s.bookings.Get(ctx, input.TenantID, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, fmt.Errorf("booking %s is %s, payment frozen: %w", booking.ID, booking.Status, domain.ErrConflict)
	}
	if booking.PaymentStatus == input.PaymentStatus {
		return booking, nil
	}

	previous := booking.PaymentStatus
	updated, err := s.bookings.UpdatePaymentStatus(ctx, input.TenantID, input.BookingID, input.PaymentStatus, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	s.publish(ctx, kafka.EventPaymentStatusChanged, updated.TenantID, updated.ID, at, kafka.PaymentStatusChangedPayload{
		BookingID:      updated.ID,
		PreviousStatus: string(previous),
		NewStatus:      string(updated.PaymentStatus),
		ChangedAt:      at,
	})

	s.logger.Info("payment status changed",
		zap.String("booking_id", updated.ID.String()),
		zap.String("previous", string(previous)),
		zap.String("new", string(updated.PaymentStatus)))
	return updated, nil
}

// MarkBookingNoShow declares a no-show once the late-tolerance grace
// period has elapsed.
func (s *BookingService) MarkBookingNoShow(ctx context.Context, input MarkNoShowInput) (*domain.Booking, error) {
	booking, err := s.bookings.Get(ctx, input.TenantID, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, fmt.Errorf("booking %s is %s: %w", booking.ID, booking.Status, domain.ErrConflict)
	}

	deadline := booking.NoShowDeadline()
	if input.MarkedAt.Before(deadline) {
		return nil, fmt.Errorf("no-show before tolerance deadline %s: %w", deadline.Format(time.RFC3339), domain.ErrPrecondition)
	}

	updated, err := s.bookings.MarkNoShow(ctx, input.TenantID, input.BookingID, input.MarkedAt.UTC(), input.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	s.invalidateSchedule(ctx, updated, updated.StartAt)
	s.publish(ctx, kafka.EventBookingNoShow, updated.TenantID, updated.ID, input.MarkedAt.UTC(), kafka.BookingNoShowPayload{
		BookingID: updated.ID,
		MarkedAt:  input.MarkedAt.UTC(),
	})

	s.logger.Info("booking marked no-show",
		zap.String("booking_id", updated.ID.String()),
		zap.Time("marked_at", input.MarkedAt))
	return updated, nil
}

func (s *BookingService) GetBooking(ctx context.Context, tenantID, id uuid.UUID) (*domain.Booking, error) {
	return s.bookings.Get(ctx, tenantID, id)
}

// ListProfessionalDay serves a professional's bookings for a calendar
// day, backed by the short-lived Redis snapshot.
func (s *BookingService) ListProfessionalDay(ctx context.Context, tenantID, professionalID uuid.UUID, day time.Time) ([]domain.Booking, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	key := dayKey(dayStart)

	if s.cache != nil {
		cached, err := s.cache.GetDaySchedule(ctx, tenantID, professionalID, key)
		if err != nil {
			s.logger.Warn("day schedule cache read", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	bookings, err := s.bookings.ListForProfessionalRange(ctx, tenantID, professionalID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetDaySchedule(ctx, tenantID, professionalID, key, bookings); err != nil {
			s.logger.Warn("day schedule cache write", zap.Error(err))
		}
	}
	return bookings, nil
}

func (s *BookingService) checkRescheduleQuota(ctx context.Context, booking *domain.Booking) error {
	series, err := s.recurrence.GetSeries(ctx, booking.TenantID, *booking.RecurrenceSeriesID)
	if err != nil {
		return err
	}
	occurrence, err := s.recurrence.GetOccurrenceByBooking(ctx, booking.TenantID, booking.ID)
	if err != nil {
		return err
	}
	if occurrence.ReschedulesCount >= series.MaxReschedulesPerOccurrence {
		return fmt.Errorf("occurrence reschedule quota %d reached: %w", series.MaxReschedulesPerOccurrence, domain.ErrConflict)
	}

	usage, err := s.recurrence.SeriesUsage(ctx, booking.TenantID, series.ID)
	if err != nil {
		return err
	}
	if usage >= series.MaxReschedulesPerSeries {
		return fmt.Errorf("series reschedule quota %d reached: %w", series.MaxReschedulesPerSeries, domain.ErrConflict)
	}
	return nil
}

func (s *BookingService) invalidateSchedule(ctx context.Context, booking *domain.Booking, times ...time.Time) {
	if s.cache == nil {
		return
	}
	days := make([]string, 0, len(times))
	for _, t := range times {
		days = append(days, dayKey(t))
	}
	if err := s.cache.InvalidateDaySchedule(ctx, booking.TenantID, booking.ProfessionalID, days...); err != nil {
		s.logger.Warn("day schedule cache invalidate", zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, event string, tenantID, key uuid.UUID, at time.Time, payload any) {
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

func (s *BookingService) referenceTime(supplied *time.Time) time.Time {
	if supplied != nil {
		return supplied.UTC()
	}
	return s.now().UTC()
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

var _ BookingUseCase = (*BookingService)(nil)
