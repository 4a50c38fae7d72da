package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecurrenceSeries declares a recurring pattern and its reschedule
// quotas. The booking lifecycle only ever reads it.
type RecurrenceSeries struct {
	ID                          uuid.UUID
	TenantID                    uuid.UUID
	ClinicID                    uuid.UUID
	MaxReschedulesPerOccurrence int
	MaxReschedulesPerSeries     int
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// RecurrenceOccurrence links one booking to its series and tracks how
// many times that particular booking has been rescheduled.
type RecurrenceOccurrence struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	SeriesID         uuid.UUID
	BookingID        uuid.UUID
	ReschedulesCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
