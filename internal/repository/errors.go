package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict means a conditional status update matched no row because
	// the item was no longer in the expected status.
	ErrStatusConflict = errors.New("queue item is not in the expected status")
)
