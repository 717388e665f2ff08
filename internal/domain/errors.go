package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Lifecycle errors
	ErrInvalidAmount    = errors.New("wrong amount submitted")
	ErrUnauthorized     = errors.New("caller is not allowed to perform this operation")
	ErrInvalidState     = errors.New("invalid status")
	ErrInvalidCandidate = errors.New("invalid address: candidate did not apply")
	ErrNotAssigned      = errors.New("task is not assigned")
	ErrTooEarly         = errors.New("need to wait 10 days")
	ErrLimitExceeded    = errors.New("limit exceeded")
	ErrNotFound         = errors.New("task not found")

	// Custody errors
	ErrInsufficientEscrow = errors.New("insufficient escrow for release")

	// Input errors
	ErrInvalidRating = errors.New("rating must be between 0 and 5")
	ErrInvalidInput  = errors.New("invalid request")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidState, "InvalidState"},
	{ErrInvalidCandidate, "InvalidCandidate"},
	{ErrNotAssigned, "NotAssigned"},
	{ErrTooEarly, "TooEarly"},
	{ErrLimitExceeded, "LimitExceeded"},
	{ErrNotFound, "NotFound"},
	{ErrInsufficientEscrow, "InsufficientEscrow"},
	{ErrInvalidRating, "InvalidRating"},
	{ErrInvalidInput, "InvalidInput"},
}

// ErrorKind returns the stable kind name of a domain error, or "Internal".
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
