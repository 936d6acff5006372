package session

import "errors"

// Sentinel errors for session management.
var (
	// ErrSessionNotFound is returned when no session has the given id or key.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrSessionEnded is returned when recording into a session that has ended.
	ErrSessionEnded = errors.New("session: already ended")

	// ErrBookmarkNotFound is returned when no bookmark has the given id.
	ErrBookmarkNotFound = errors.New("session: bookmark not found")

	// ErrTemplateNotFound is returned for an unregistered template name.
	ErrTemplateNotFound = errors.New("session: template not found")

	// ErrCollectionNotFound is returned for an unknown bookmark collection.
	ErrCollectionNotFound = errors.New("session: collection not found")

	// ErrStoreLocked is returned when another writer holds the store lock.
	ErrStoreLocked = errors.New("session: store locked")

	// ErrNoStore is returned by persistence calls on a manager without a store.
	ErrNoStore = errors.New("session: no store configured")
)
