package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "SCHEDULED"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusNoShow    BookingStatus = "NO_SHOW"
)

// Terminal reports whether the status admits no further status mutation.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusSettled  PaymentStatus = "SETTLED"
	PaymentStatusDeclined PaymentStatus = "DECLINED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// PricingSplit is accepted as an already-validated value; the engine
// stores it verbatim and never recomputes it.
type PricingSplit struct {
	ProfessionalAmountCents int64  `json:"professional_amount_cents"`
	ClinicAmountCents       int64  `json:"clinic_amount_cents"`
	Currency                string `json:"currency"`
}

// Booking is the authoritative appointment record created from a
// consumed hold. It is mutated in place under optimistic versioning and
// never physically deleted.
type Booking struct {
	ID                     uuid.UUID
	TenantID               uuid.UUID
	ClinicID               uuid.UUID
	ProfessionalID         uuid.UUID
	OriginalProfessionalID *uuid.UUID
	CoverageID             *uuid.UUID
	PatientID              uuid.UUID
	Source                 string
	Status                 BookingStatus
	PaymentStatus          PaymentStatus
	HoldID                 uuid.UUID
	HoldExpiresAt          time.Time
	StartAt                time.Time
	EndAt                  time.Time
	Timezone               string
	LateToleranceMinutes   int
	RecurrenceSeriesID     *uuid.UUID
	CancellationReason     *string
	PricingSplit           *PricingSplit
	PreconditionsPassed    bool
	AnamneseRequired       bool
	AnamneseOverrideReason *string
	NoShowMarkedAt         *time.Time
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NoShowDeadline is the earliest instant at which the booking may be
// marked as a no-show.
func (b *Booking) NoShowDeadline() time.Time {
	return b.StartAt.Add(time.Duration(b.LateToleranceMinutes) * time.Minute)
}
