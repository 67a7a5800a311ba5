package services

import (
	"errors"
	"fmt"

	"github.com/rks020/ptbodychange/internal/models"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNoMatchingDays and ErrNoCreditsLeft are distinct on purpose: both
	// are user-correctable, but they need different messages in the UI.
	ErrNoMatchingDays = errors.New("no dates in the selected range fall on the selected days")
	ErrNoCreditsLeft  = errors.New("member has no remaining sessions in their package")
)

// ConflictError pauses schedule creation pending the caller's decision to
// abandon or force-create. It is control flow, not a fault.
type ConflictError struct {
	Conflicts []models.SessionConflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d existing session(s) conflict with the requested schedule", len(e.Conflicts))
}

// PartialCreationError reports that some sessions were created before the
// batch faulted. The transaction rolls the rows back, but the count tells the
// operator how far the batch got.
type PartialCreationError struct {
	CreatedCount int
	Err          error
}

func (e *PartialCreationError) Error() string {
	return fmt.Sprintf("schedule creation failed after %d session(s): %v", e.CreatedCount, e.Err)
}

func (e *PartialCreationError) Unwrap() error {
	return e.Err
}
