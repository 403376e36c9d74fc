package models

import "errors"

// Domain-level sentinel errors for business logic
// These errors should not contain HTTP-specific information

var (
	// ErrSessionNotFound indicates that a session with the given ID does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrMeetingNotFound indicates that a meeting with the given ID does not exist
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrInterviewNotFound indicates that an interview with the given ID does not exist
	ErrInterviewNotFound = errors.New("interview not found")

	// ErrUserNotFound indicates that the wallet owner does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInsufficientCredits indicates a conditional wallet decrement failed
	// because the pool balance was below the requested amount
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidJoinCode indicates the presented join code does not match the
	// session's stored code
	ErrInvalidJoinCode = errors.New("invalid join code")

	// ErrAttendeeSlotTaken indicates another identity already holds the
	// single-attendee slot for the session
	ErrAttendeeSlotTaken = errors.New("attendee slot already taken")

	// ErrSessionEnded indicates the session is in a terminal state
	ErrSessionEnded = errors.New("session already ended")

	// ErrProviderNotConfigured indicates the selected AI provider has no
	// credential available
	ErrProviderNotConfigured = errors.New("provider not configured")
)
