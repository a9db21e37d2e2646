package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/cashcount"
)

// Code classifies a service failure.  Handlers map codes to HTTP statuses.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInsufficientPayment Code = "INSUFFICIENT_PAYMENT"
	CodeSeatUnavailable     Code = "SEAT_UNAVAILABLE"
	CodeSessionClosed       Code = "SESSION_CLOSED"
	CodeTerminalNotOpen     Code = "TERMINAL_NOT_OPEN"
	CodeOperationInvalid    Code = "OPERATION_INVALID"
	CodeNotFound            Code = "NOT_FOUND"
	CodePersistence         Code = "PERSISTENCE_ERROR"
)

// Error is the error type returned by every service operation.  Two
// Errors match under errors.Is when their codes are equal, so callers can
// test against the sentinels below.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrInsufficientPayment = &Error{Code: CodeInsufficientPayment, Message: "insufficient payment"}
	ErrSeatUnavailable     = &Error{Code: CodeSeatUnavailable, Message: "seat unavailable"}
	ErrSessionClosed       = &Error{Code: CodeSessionClosed, Message: "cash session closed"}
	ErrTerminalNotOpen     = &Error{Code: CodeTerminalNotOpen, Message: "terminal not open"}
	ErrOperationInvalid    = &Error{Code: CodeOperationInvalid, Message: "operation not allowed"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPersistence         = &Error{Code: CodePersistence, Message: "persistence failure"}
)

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// checkMoney rejects an amount the DECIMAL(12,2) columns cannot store
// exactly.
func checkMoney(field string, d decimal.Decimal) error {
	if err := cashcount.ValidateAmount(d); err != nil {
		return &Error{Code: CodeValidation, Message: field + ": " + err.Error(), Err: err}
	}
	return nil
}

// persistence wraps a storage failure.  Errors that already carry a code
// pass through so that checks made inside a transaction keep theirs.
func persistence(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Code: CodePersistence, Message: op, Err: err}
}

// CodeOf returns the code carried by err, or CodePersistence for foreign
// errors.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodePersistence
}
