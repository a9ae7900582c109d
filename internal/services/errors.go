// Package services holds the business logic behind the HTTP handlers: the
// assistant chat turn, session management, title generation and bulk
// collection transfer wiring.
//
// This file centralizes the service-level error values so that handlers can
// map them to HTTP status codes consistently.
package services

import "errors"

// Chat-related errors.
var (
	// ErrChatNotFound indicates that the requested chat session does not exist
	// or is not owned by the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyMessage is returned when a chat turn carries no message text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a chat message exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("message too long")

	// ErrMissingCollection is returned when a chat turn has no collection id.
	ErrMissingCollection = errors.New("collection id is required")
)

// Collection-related errors.
var (
	// ErrCollectionNotFound indicates the collection does not exist or belongs
	// to another user.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrUnsupportedFormat is returned for an unknown export/import format.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidImport wraps a file that could not be decoded at all.
	ErrInvalidImport = errors.New("invalid import file")

	// ErrImportTooLarge is returned when an upload exceeds the import limit.
	ErrImportTooLarge = errors.New("import file too large")
)
