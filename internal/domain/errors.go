package domain

import "errors"

// Failure taxonomy surfaced by every use case. Callers decide whether
// to re-read and retry; nothing in the engine retries internally.
var (
	// ErrNotFound: the referenced hold/booking/series does not exist
	// for the tenant.
	ErrNotFound = errors.New("not found")

	// ErrHoldExpired: the hold's TTL has elapsed. Distinct from
	// ErrConflict because the remedy is a fresh hold, not a retry.
	ErrHoldExpired = errors.New("hold expired")

	// ErrConflict: invalid state transition, hold already consumed,
	// optimistic version mismatch, or recurrence quota exceeded.
	ErrConflict = errors.New("conflict")

	// ErrPrecondition: input violates a timing rule.
	ErrPrecondition = errors.New("precondition failed")

	// ErrPaymentRequired: confirmation attempted without an approved
	// payment.
	ErrPaymentRequired = errors.New("payment not approved")
)
