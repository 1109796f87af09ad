package engine

import "errors"

var (
	ErrBookUnavailable = errors.New("order book unavailable")
	errInvalidOrder    = errors.New("invalid taker order")
)
