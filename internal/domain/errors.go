package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionNotFound is returned when no attempt is bound to the session key.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrAttemptComplete is returned when every question has been answered but the attempt is not finalized yet.
	ErrAttemptComplete = errors.New("all questions answered")
	// ErrAttemptIncomplete is returned when finalization is requested before the last answer.
	ErrAttemptIncomplete = errors.New("attempt has unanswered questions")
	// ErrAttemptFinished is returned for any mutation of a finalized attempt.
	ErrAttemptFinished = errors.New("attempt already finished")
	// ErrAttemptInProgress is returned when a start form names someone other than the unfinished attempt's owner.
	ErrAttemptInProgress = errors.New("another attempt is in progress for this session")
	// ErrStaleSubmission is returned when a submit targets a question that is no longer current.
	ErrStaleSubmission = errors.New("answer targets a question that is no longer current")
	// ErrInvalidTabEvent indicates an unknown tab event kind.
	ErrInvalidTabEvent = errors.New("tab event kind must be blur or focus")
	// ErrEmptyQuestionBank indicates the question source produced no questions.
	ErrEmptyQuestionBank = errors.New("question bank is empty")
)

// ValidationError reports a required start field that was blank after trimming.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// CooldownError is returned when the nickname completed an attempt too recently.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	h, m, s := e.Parts()
	return fmt.Sprintf("next attempt available in %dh %dm %ds", h, m, s)
}

// Parts splits the remaining wait into whole hours, minutes and seconds.
// Fractions of a second are rounded up so the display never reaches zero early.
func (e *CooldownError) Parts() (hours, minutes, seconds int) {
	remaining := e.Remaining
	if remaining < 0 {
		remaining = 0
	}
	total := int64((remaining + time.Second - 1) / time.Second)
	return int(total / 3600), int(total % 3600 / 60), int(total % 60)
}

// StoreError wraps a user record backend failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotifierError wraps a failed delivery of one notification chunk.
type NotifierError struct {
	Chunk int
	Err   error
}

func (e *NotifierError) Error() string {
	return fmt.Sprintf("notification chunk %d: %v", e.Chunk, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }

// ErrorKind classifies errors for the request boundary.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindCooldown
	KindSessionState
	KindStoreFault
	KindNotifierFault
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindCooldown:
		return "cooldown"
	case KindSessionState:
		return "session_state"
	case KindStoreFault:
		return "store_fault"
	case KindNotifierFault:
		return "notifier_fault"
	default:
		return "internal"
	}
}

// KindOf maps an error onto the taxonomy used by the HTTP layer.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var (
		validation *ValidationError
		cooldown   *CooldownError
		store      *StoreError
		notifier   *NotifierError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, ErrInvalidTabEvent):
		return KindValidation
	case errors.As(err, &cooldown):
		return KindCooldown
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrAttemptComplete),
		errors.Is(err, ErrAttemptIncomplete),
		errors.Is(err, ErrAttemptFinished),
		errors.Is(err, ErrAttemptInProgress),
		errors.Is(err, ErrStaleSubmission):
		return KindSessionState
	case errors.As(err, &store):
		return KindStoreFault
	case errors.As(err, &notifier):
		return KindNotifierFault
	default:
		return KindInternal
	}
}
