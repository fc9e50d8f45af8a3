package collection

import "errors"

var (
	// ErrCollectionFull is returned when count == capacity.
	ErrCollectionFull = errors.New("collection full")

	// ErrEntryNotFound is returned for indexes >= count and unknown keys.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrReadOnlyAccessDenied is returned when removing a read-only record.
	ErrReadOnlyAccessDenied = errors.New("read-only access denied")

	// ErrInvalidHeader is returned when a collection header is inconsistent
	// with its window.
	ErrInvalidHeader = errors.New("invalid collection header")

	// ErrOrderViolated is returned when an ordered collection is not sorted.
	ErrOrderViolated = errors.New("collection order violated")
)
