// Package validation holds the stateless booking rules shared by the
// hold and booking lifecycles. All functions are pure: they look only
// at the records and the reference time they are handed.
package validation

import (
	"fmt"
	"time"

	"github.com/clinicore/scheduling/internal/domain"
)

// ValidateHoldForBookingCreation decides whether a hold may still be
// converted into a booking at the given reference time.
func ValidateHoldForBookingCreation(hold *domain.BookingHold, now time.Time) error {
	if hold == nil {
		return fmt.Errorf("hold: %w", domain.ErrNotFound)
	}
	if hold.ExpiredAt(now) {
		return fmt.Errorf("hold %s ttl elapsed at %s: %w", hold.ID, hold.TTLExpiresAt.Format(time.RFC3339), domain.ErrHoldExpired)
	}
	if hold.Status != domain.HoldStatusActive {
		return fmt.Errorf("hold %s is %s: %w", hold.ID, hold.Status, domain.ErrConflict)
	}
	return nil
}

// ValidateConfirmation decides whether a booking may be confirmed
// against its hold at the given confirmation time.
func ValidateConfirmation(hold *domain.BookingHold, booking *domain.Booking, payment domain.PaymentStatus, at time.Time) error {
	if hold == nil || booking == nil {
		return fmt.Errorf("confirmation: %w", domain.ErrNotFound)
	}
	if hold.ExpiredAt(at) {
		return fmt.Errorf("hold %s ttl elapsed at %s: %w", hold.ID, hold.TTLExpiresAt.Format(time.RFC3339), domain.ErrHoldExpired)
	}
	if booking.Status.Terminal() {
		return fmt.Errorf("booking %s is %s: %w", booking.ID, booking.Status, domain.ErrConflict)
	}
	if payment != domain.PaymentStatusApproved {
		return fmt.Errorf("payment status %s: %w", payment, domain.ErrPaymentRequired)
	}
	return nil
}

// ValidateTimeRange rejects empty or inverted slots.
func ValidateTimeRange(start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("start %s must be before end %s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), domain.ErrPrecondition)
	}
	return nil
}
