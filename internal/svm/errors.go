package svm

import (
	"errors"
	"fmt"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

// Error represents a failure detected by a validation session.
//
// Failures fall into two tiers:
//   - Logic failures: an internal invariant was broken (mismatched
//     re-derivation during record construction, a corrupt artifact,
//     an unknown symbol ID). With AssertionsFatal these panic;
//     otherwise they fail the session like any other error.
//   - Environmental failures: the symbol ID space ran out, a symbol
//     could not be resolved at load time, or a re-derived fact
//     disagreed with the recorded one. These are never fatal; the
//     session fails and the caller falls back to a fresh compile.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the entry point that detected the failure.
	Op string

	// Record renders the record involved, when one exists.
	Record string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes session errors.
type ErrorCode string

const (
	// ErrCodeLogicFailure indicates a broken internal invariant.
	ErrCodeLogicFailure ErrorCode = "LOGIC_FAILURE"

	// ErrCodeLimitExceeded indicates the symbol ID space is exhausted.
	ErrCodeLimitExceeded ErrorCode = "LIMIT_EXCEEDED"

	// ErrCodeMismatch indicates a re-derived fact disagreed with the
	// recorded one at load time.
	ErrCodeMismatch ErrorCode = "MISMATCH"

	// ErrCodeMissingSymbol indicates a recorded symbol could not be
	// resolved in the loading runtime.
	ErrCodeMissingSymbol ErrorCode = "MISSING_SYMBOL"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("%s: %s: %s (record=%s)", e.Code, e.Op, e.Message, e.Record)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// IsLogicFailure reports whether err is a logic failure.
// Uses errors.As to handle wrapped errors.
func IsLogicFailure(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeLogicFailure
}

// IsLimitExceeded reports whether err is an ID space exhaustion error.
func IsLimitExceeded(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeLimitExceeded
}

// IsMismatch reports whether err is a load-time fact mismatch.
func IsMismatch(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeMismatch
}

// IsMissingSymbol reports whether err is an unresolvable-symbol error.
func IsMissingSymbol(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeMissingSymbol
}

func newMismatchError(op string, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeMismatch,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

func newMissingSymbolError(op string, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeMissingSymbol,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

func newLimitError(op string) *Error {
	return &Error{
		Code:    ErrCodeLimitExceeded,
		Op:      op,
		Message: fmt.Sprintf("symbol ID space exhausted (max %d)", facts.MaxID),
	}
}
