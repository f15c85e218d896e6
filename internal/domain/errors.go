package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no running session matches the id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned for operations on a finished or cancelled session.
	ErrSessionClosed = errors.New("quiz session already closed")
	// ErrQuestionNotFound indicates a question id is absent from the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions is returned when session selection yields zero questions.
	ErrNoQuestions = errors.New("no questions available for session")
	// ErrDuplicatePollID signals a poll id registered twice; this is an
	// invariant violation and fatal to the owning session.
	ErrDuplicatePollID = errors.New("poll id already registered")
	// ErrDispatch wraps transport failures while sending a question.
	ErrDispatch = errors.New("question dispatch failed")
	// ErrDelivery is returned when the final results could not be posted on
	// either the primary or the fallback channel.
	ErrDelivery = errors.New("result delivery failed")
)
