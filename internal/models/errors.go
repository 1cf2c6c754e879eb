package models

import "errors"

// Sentinel errors for the ingestion pipeline.
var (
	// ErrMalformedContainer means the export container itself cannot be
	// opened or read. Fatal to the whole run.
	ErrMalformedContainer = errors.New("malformed export container")

	// ErrMalformedRecord means a single conversation record cannot be
	// minimally parsed. Local to that record; the run continues.
	ErrMalformedRecord = errors.New("malformed conversation record")
)

// Sentinel errors for the storage gateway.
var (
	// ErrChatNotFound is returned by lookups when no chat exists for the
	// given external ID.
	ErrChatNotFound = errors.New("chat not found")

	// ErrDuplicateKey indicates a unique constraint violation, i.e. a
	// concurrent insert won the race for the same external ID.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStorageUnavailable means the store cannot be reached at all.
	// Fatal to the run; whatever was already committed stands.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
