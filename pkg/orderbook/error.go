package orderbook

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("duplicate order")
	ErrInvalidEntry   = errors.New("invalid order book entry")
	ErrInvalidReduce  = errors.New("invalid reduce quantity")
)
