package repository

import "errors"

var (
	// ErrNotFound is returned when no document matches the id (or filter).
	ErrNotFound = errors.New("document not found")
	// ErrStale is returned by conditional writes when the stored version or
	// status no longer matches the one the caller read.
	ErrStale = errors.New("document changed concurrently")
	// ErrDuplicate is returned when a unique index rejects the write.
	ErrDuplicate = errors.New("duplicate key")
)
