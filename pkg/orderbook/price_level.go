package orderbook

import (
	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// priceLevel keeps the resting entries of one price in time priority.
type priceLevel struct {
	price  decimal.Decimal
	orders deque.Deque[*Entry]
	total  int64
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{price: price}
}

func (l *priceLevel) push(e *Entry) {
	// Entries normally arrive in time order, so this walks at most a step or two.
	i := l.orders.Len()
	for i > 0 && e.before(l.orders.At(i-1)) {
		i--
	}
	if i == l.orders.Len() {
		l.orders.PushBack(e)
	} else {
		l.orders.Insert(i, e)
	}
	l.total += e.RemainingQuantity
}

func (l *priceLevel) remove(orderID int64) (*Entry, bool) {
	idx := l.orders.Index(func(e *Entry) bool { return e.OrderID == orderID })
	if idx < 0 {
		return nil, false
	}
	e := l.orders.Remove(idx)
	l.total -= e.RemainingQuantity
	return e, true
}

func (l *priceLevel) front() *Entry {
	return l.orders.Front()
}

func (l *priceLevel) empty() bool {
	return l.orders.Len() == 0
}

func bidLess(a, b *priceLevel) bool {
	return a.price.GreaterThan(b.price) // highest first
}

func askLess(a, b *priceLevel) bool {
	return a.price.LessThan(b.price) // lowest first
}
