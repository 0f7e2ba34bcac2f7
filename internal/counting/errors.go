package counting

import (
	"errors"
	"fmt"
)

// Validation errors: the caller must fix the input.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is approved and closed")
	ErrInvalidQuantity = errors.New("counted quantity must not be negative")
	ErrInvalidMethod   = errors.New("counting method must be manual or scan")
	ErrProductNotFound = errors.New("product not found")
	ErrNoItemsCounted  = errors.New("session has no counted items")
)

// Conflict errors: re-read the session and retry the logical operation.
var (
	ErrSessionNotCompleted = errors.New("session is not completed")
	ErrAlreadyApproved     = errors.New("session already approved")
	ErrCountConflict       = errors.New("concurrent count for the same product")
	ErrRecomputeConflict   = errors.New("session items kept changing during recompute")
)

// ErrUnauthorized means the actor may not perform the operation.
var ErrUnauthorized = errors.New("actor is not allowed to approve")

// ErrLedgerCommitFailed means the ledger rejected an approval batch. Nothing
// was applied and the session is still completed. Not retried automatically.
var ErrLedgerCommitFailed = errors.New("ledger rejected adjustment batch")

// Error carries the operation and the offending session or field alongside
// one of the sentinel errors above.
type Error struct {
	Op        string
	SessionID int64
	Field     string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.SessionID > 0 {
		msg += fmt.Sprintf(" (session %d)", e.SessionID)
	}
	if e.Field != "" {
		msg += " " + e.Field
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(op string, sessionID int64, field string, err error) error {
	return &Error{Op: op, SessionID: sessionID, Field: field, Err: err}
}

// IsValidation reports whether err is a caller-fixable input error.
func IsValidation(err error) bool {
	for _, target := range []error{ErrSessionNotFound, ErrSessionClosed, ErrInvalidQuantity, ErrInvalidMethod, ErrProductNotFound, ErrNoItemsCounted} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err signals a lost race that may be retried
// after re-reading the session.
func IsConflict(err error) bool {
	for _, target := range []error{ErrSessionNotCompleted, ErrAlreadyApproved, ErrCountConflict, ErrRecomputeConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
