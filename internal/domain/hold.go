package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "ACTIVE"
	HoldStatusConfirmed HoldStatus = "CONFIRMED"
	HoldStatusCancelled HoldStatus = "CANCELLED"
	HoldStatusExpired   HoldStatus = "EXPIRED"
)

// CanTransitionTo reports whether a hold may move to the given status.
// Only ACTIVE holds may transition; every other status is final.
func (s HoldStatus) CanTransitionTo(next HoldStatus) bool {
	if s != HoldStatusActive {
		return false
	}
	switch next {
	case HoldStatusConfirmed, HoldStatusCancelled, HoldStatusExpired:
		return true
	default:
		return false
	}
}

// BookingHold is a time-bounded, exclusive claim on a professional's slot.
// It is consumed at most once by booking creation.
type BookingHold struct {
	ID                     uuid.UUID
	TenantID               uuid.UUID
	ClinicID               uuid.UUID
	ProfessionalID         uuid.UUID
	OriginalProfessionalID *uuid.UUID
	CoverageID             *uuid.UUID
	PatientID              uuid.UUID
	ServiceTypeID          uuid.UUID
	StartAt                time.Time
	EndAt                  time.Time
	TTLExpiresAt           time.Time
	Status                 HoldStatus
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ExpiredAt reports whether the hold's TTL has elapsed relative to the
// given reference time. Expiry is evaluated lazily; no sweeper flips
// holds to EXPIRED in the background.
func (h *BookingHold) ExpiredAt(now time.Time) bool {
	return !h.TTLExpiresAt.After(now)
}
