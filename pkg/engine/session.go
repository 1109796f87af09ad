package engine

import (
	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// Session is the exclusive view of one market handed to Execute callbacks.
// It is only valid until the callback returns.
type Session struct {
	market *Market
	dirty  bool
}

func (s *Session) Symbol() string {
	return s.market.symbol
}

// Book exposes the market's book for read-only peeks such as BestAsk.
func (s *Session) Book() *orderbook.OrderBook {
	return s.market.book
}

func (s *Session) Depth(n int) orderbook.Depth {
	return s.market.book.Depth(n)
}

// Match runs price-time priority matching of order against the book.
// Fills always execute at the resting order's price; a LIMIT remainder
// rests, a MARKET remainder is dropped.
func (s *Session) Match(order *Order) (*MatchResult, error) {
	if order.Quantity <= 0 || order.FilledQuantity < 0 || order.FilledQuantity > order.Quantity {
		return nil, errInvalidOrder
	}
	if order.Side != orderbook.BUY && order.Side != orderbook.SELL {
		return nil, errInvalidOrder
	}
	if order.Type == LIMIT && !order.Price.IsPositive() {
		return nil, errInvalidOrder
	}
	if order.Type != LIMIT && order.Type != MARKET {
		return nil, errInvalidOrder
	}

	book := s.market.book
	counterSide := order.Side.Opposite()
	remaining := order.Quantity - order.FilledQuantity

	budget := order.Budget
	capped := order.Type == MARKET && order.Side == orderbook.BUY && budget.IsPositive()

	result := &MatchResult{}
	for remaining > 0 {
		best, ok := book.Best(counterSide)
		if !ok {
			break
		}
		if order.Type == LIMIT && !crosses(order.Side, order.Price, best.Price) {
			break
		}

		qty := min(remaining, best.RemainingQuantity)
		if capped {
			qty = min(qty, budget.Div(best.Price).Floor().IntPart())
			if qty <= 0 {
				break
			}
		}

		fill := Fill{
			MakerOrderID: best.OrderID,
			Price:        best.Price,
			Quantity:     qty,
		}
		if order.Side == orderbook.BUY {
			fill.BuyOrderID, fill.BuyOwner = order.ID, order.Owner
			fill.SellOrderID, fill.SellOwner = best.OrderID, best.Owner
		} else {
			fill.BuyOrderID, fill.BuyOwner = best.OrderID, best.Owner
			fill.SellOrderID, fill.SellOwner = order.ID, order.Owner
		}

		if _, err := book.Reduce(best.OrderID, qty); err != nil {
			return nil, err
		}
		s.dirty = true

		remaining -= qty
		if capped {
			budget = budget.Sub(fill.Notional())
		}
		result.Fills = append(result.Fills, fill)
	}

	if remaining > 0 && order.Type == LIMIT {
		err := book.Insert(&orderbook.Entry{
			OrderID:           order.ID,
			Owner:             order.Owner,
			Side:              order.Side,
			Price:             order.Price,
			RemainingQuantity: remaining,
			ArrivalTime:       order.ArrivalTime,
		})
		if err != nil {
			return nil, err
		}
		s.dirty = true
		result.Rested = true
	}

	result.Remaining = remaining
	result.FilledQuantity = order.Quantity - remaining
	return result, nil
}

func crosses(side orderbook.Side, limit, resting decimal.Decimal) bool {
	if side == orderbook.BUY {
		return limit.GreaterThanOrEqual(resting)
	}
	return limit.LessThanOrEqual(resting)
}
