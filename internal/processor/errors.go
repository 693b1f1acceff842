package processor

import (
	"errors"
	"fmt"

	"mapprice/server/internal/models"
)

var (
	ErrConflict     = errors.New("aggregate key conflict")
	ErrWriteFailure = errors.New("aggregate write failed")
)

// ConflictError reports a listing whose aggregate row collided with a row
// written concurrently by another writer.
type ConflictError struct {
	ListingID uint
	Kind      models.TransactionKind
	Err       error
}

func (e *ConflictError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("listing %d: %v: %v", e.ListingID, ErrConflict, e.Err)
	}
	return fmt.Sprintf("listing %d %s: %v: %v", e.ListingID, e.Kind, ErrConflict, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
