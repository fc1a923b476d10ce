package models

import (
	"errors"
	"fmt"
)

// Recoverable operation errors. Every public engine operation fails with
// exactly one of these kinds; callers translate them to transport responses.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAmount     = errors.New("stake amount must be at least 1 minor-unit")
	ErrCampaignNotOpen   = errors.New("campaign is not open for wagers")
	ErrCampaignNotClosed = errors.New("campaign is not closed")
	ErrAlreadyResolved   = errors.New("campaign is already resolved")
	ErrNotResolved       = errors.New("campaign is not resolved")
	ErrNotAWinner        = errors.New("position did not win")
	ErrAlreadyClaimed    = errors.New("position has already been claimed")
	ErrNotOwner          = errors.New("caller does not own this position")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrPositionNotFound  = errors.New("position not found")
	ErrNotAuthorized     = errors.New("caller is not authorized for this operation")
)

// InvariantViolationError signals an internal accounting fault such as a
// pool total drifting from the sum of its positions, or a won position on an
// empty winning pool. These indicate a bug, never bad input, and must abort
// the operation rather than be coerced into a user error or a number.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation (%s): %s", e.Invariant, e.Detail)
}

// NewInvariantViolation creates an internal fault for a broken invariant
func NewInvariantViolation(invariant, format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{
		Invariant: invariant,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// IsInvariantViolation reports whether err is (or wraps) an internal fault
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolationError
	return errors.As(err, &iv)
}
