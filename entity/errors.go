package entity

import "errors"

var (
	// ErrRoutingConflict — lost a race creating an open session; retry
	// against the winner.
	ErrRoutingConflict = errors.New("routing conflict: open session already exists")

	// ErrSignatureInvalid — webhook signature verification failed.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrDuplicateEvent — provider event id already applied; caller
	// should acknowledge without side effects.
	ErrDuplicateEvent = errors.New("duplicate provider event")

	// ErrAssistantUnavailable — total assistant failure; session must
	// be escalated.
	ErrAssistantUnavailable = errors.New("assistant unavailable")

	// ErrSessionClosed — the session was closed while work was in
	// flight; the result must be discarded.
	ErrSessionClosed = errors.New("session closed")

	// ErrStaleState — a conditional update lost against a concurrent
	// writer; reload and retry.
	ErrStaleState = errors.New("stale state")

	// ErrTransport — channel adapter send/receive failure; retryable.
	ErrTransport = errors.New("transport error")

	// ErrInvalidTransition — lead status transition would move backward
	// or leave a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrNotFound = errors.New("not found")
)
