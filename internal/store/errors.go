package store

import "errors"

var (
	// ErrClientGroupOwnership indicates the requesting user does not own the
	// client group. Fatal for the request, never retried.
	ErrClientGroupOwnership = errors.New("store: user does not own client group")
	// ErrClientOwnership indicates the client record belongs to a different
	// client group than the one named by the request.
	ErrClientOwnership = errors.New("store: client does not belong to client group")
	// ErrListAccess indicates the acting user neither owns nor is shared on
	// the list. Business-level; the mutation processor converts it into an
	// error-mode replay.
	ErrListAccess = errors.New("store: user cannot access list")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("store: entity not found")
)
