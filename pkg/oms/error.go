package oms

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable class of a business failure.
type ErrorKind string

const (
	KindInstrumentNotFound   ErrorKind = "INSTRUMENT_NOT_FOUND"
	KindInsufficientFunds    ErrorKind = "INSUFFICIENT_FUNDS"
	KindInsufficientHoldings ErrorKind = "INSUFFICIENT_HOLDINGS"
	KindNoLiquidity          ErrorKind = "NO_LIQUIDITY"
	KindOrderNotFound        ErrorKind = "ORDER_NOT_FOUND"
	KindInvalidOrder         ErrorKind = "INVALID_ORDER"
	KindDuplicateInstrument  ErrorKind = "DUPLICATE_INSTRUMENT"
	KindAccountNotFound      ErrorKind = "ACCOUNT_NOT_FOUND"
)

// Error is a caller-facing business failure. Two errors match with
// errors.Is when their kinds are equal.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInstrumentNotFound   = &Error{Kind: KindInstrumentNotFound}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds}
	ErrInsufficientHoldings = &Error{Kind: KindInsufficientHoldings}
	ErrNoLiquidity          = &Error{Kind: KindNoLiquidity}
	ErrOrderNotFound        = &Error{Kind: KindOrderNotFound}
	ErrInvalidOrder         = &Error{Kind: KindInvalidOrder}
	ErrDuplicateInstrument  = &Error{Kind: KindDuplicateInstrument}
	ErrAccountNotFound      = &Error{Kind: KindAccountNotFound}

	// ErrSettlementFailed wraps persistence and commit failures. It is never
	// a business error.
	ErrSettlementFailed = errors.New("settlement failed")
)

// KindOf returns the business kind carried by err, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
