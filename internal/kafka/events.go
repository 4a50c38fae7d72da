package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Domain event names, published once per successful state transition.
// Delivery is at-least-once; consumers must be idempotent.
const (
	EventHoldCreated          = "scheduling.hold_created"
	EventBookingCreated       = "scheduling.booking_created"
	EventBookingConfirmed     = "scheduling.booking_confirmed"
	EventBookingRescheduled   = "scheduling.booking_rescheduled"
	EventBookingCancelled     = "scheduling.booking_cancelled"
	EventBookingNoShow        = "scheduling.booking_no_show"
	EventPaymentStatusChanged = "scheduling.payment_status_changed"
)

// Envelope wraps every scheduling event on the wire.
type Envelope struct {
	Event      string          `json:"event"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals the payload into a ready-to-publish envelope.
func NewEnvelope(event string, tenantID uuid.UUID, occurredAt time.Time, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return &Envelope{
		Event:      event,
		TenantID:   tenantID,
		OccurredAt: occurredAt,
		Payload:    data,
	}, nil
}

type HoldCreatedPayload struct {
	HoldID         uuid.UUID `json:"hold_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ServiceTypeID  uuid.UUID `json:"service_type_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	TTLExpiresAt   time.Time `json:"ttl_expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type BookingCreatedPayload struct {
	BookingID      uuid.UUID `json:"booking_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	Source         string    `json:"source"`
	Timezone       string    `json:"timezone"`
	CreatedAt      time.Time `json:"created_at"`
}

type BookingConfirmedPayload struct {
	BookingID              uuid.UUID  `json:"booking_id"`
	ClinicID               uuid.UUID  `json:"clinic_id"`
	ProfessionalID         uuid.UUID  `json:"professional_id"`
	PatientID              uuid.UUID  `json:"patient_id"`
	StartAt                time.Time  `json:"start_at"`
	EndAt                  time.Time  `json:"end_at"`
	Source                 string     `json:"source"`
	ConfirmedAt            time.Time  `json:"confirmed_at"`
	OriginalProfessionalID *uuid.UUID `json:"original_professional_id,omitempty"`
	CoverageID             *uuid.UUID `json:"coverage_id,omitempty"`
}

type BookingRescheduledPayload struct {
	BookingID       uuid.UUID `json:"booking_id"`
	PreviousStartAt time.Time `json:"previous_start_at"`
	PreviousEndAt   time.Time `json:"previous_end_at"`
	NewStartAt      time.Time `json:"new_start_at"`
	NewEndAt        time.Time `json:"new_end_at"`
	RescheduledAt   time.Time `json:"rescheduled_at"`
}

type BookingCancelledPayload struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CancelledBy string    `json:"cancelled_by"`
	// Reason is omitted entirely when the caller gave none; an empty
	// string means an explicitly empty reason.
	Reason      *string   `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type BookingNoShowPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
	MarkedAt  time.Time `json:"marked_at"`
}

type PaymentStatusChangedPayload struct {
	BookingID      uuid.UUID `json:"booking_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
}
