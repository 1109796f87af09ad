// file: pkg/orderbook/orderbook.go

package orderbook

import (
	"encoding/json"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const btreeDegree = 32

// OrderBook holds the resting limit orders of one instrument. It does no
// locking; callers serialize access per symbol.
type OrderBook struct {
	symbol string

	bids *btree.BTreeG[*priceLevel]
	asks *btree.BTreeG[*priceLevel]

	ordersByID map[int64]*Entry
}

func New(symbol string) *OrderBook {
	return &OrderBook{
		symbol:     symbol,
		bids:       btree.NewG(btreeDegree, bidLess),
		asks:       btree.NewG(btreeDegree, askLess),
		ordersByID: make(map[int64]*Entry),
	}
}

func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// Len returns the number of resting entries on both sides.
func (ob *OrderBook) Len() int {
	return len(ob.ordersByID)
}

func (ob *OrderBook) levels(side Side) *btree.BTreeG[*priceLevel] {
	if side == BUY {
		return ob.bids
	}
	return ob.asks
}

// Insert rests e on its side of the book.
func (ob *OrderBook) Insert(e *Entry) error {
	if e == nil || e.RemainingQuantity <= 0 || !e.Price.IsPositive() {
		return ErrInvalidEntry
	}
	if e.Side != BUY && e.Side != SELL {
		return ErrInvalidEntry
	}
	if _, ok := ob.ordersByID[e.OrderID]; ok {
		return ErrDuplicateOrder
	}

	tree := ob.levels(e.Side)
	lvl, ok := tree.Get(&priceLevel{price: e.Price})
	if !ok {
		lvl = newPriceLevel(e.Price)
		tree.ReplaceOrInsert(lvl)
	}
	lvl.push(e)
	ob.ordersByID[e.OrderID] = e

	return nil
}

// Remove takes a resting entry out of the book regardless of its position.
func (ob *OrderBook) Remove(orderID int64) (*Entry, error) {
	e, ok := ob.ordersByID[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	tree := ob.levels(e.Side)
	lvl, ok := tree.Get(&priceLevel{price: e.Price})
	if !ok {
		delete(ob.ordersByID, orderID)
		return nil, ErrOrderNotFound
	}
	lvl.remove(orderID)
	if lvl.empty() {
		tree.Delete(lvl)
	}
	delete(ob.ordersByID, orderID)

	return e, nil
}

// Reduce lowers the remaining quantity of a resting entry by qty and drops
// the entry once nothing remains.
func (ob *OrderBook) Reduce(orderID int64, qty int64) (*Entry, error) {
	e, ok := ob.ordersByID[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if qty <= 0 || qty > e.RemainingQuantity {
		return nil, ErrInvalidReduce
	}

	tree := ob.levels(e.Side)
	lvl, ok := tree.Get(&priceLevel{price: e.Price})
	if !ok {
		return nil, ErrOrderNotFound
	}

	e.RemainingQuantity -= qty
	lvl.total -= qty
	if e.RemainingQuantity == 0 {
		lvl.remove(orderID)
		if lvl.empty() {
			tree.Delete(lvl)
		}
		delete(ob.ordersByID, orderID)
	}

	return e, nil
}

func (ob *OrderBook) Get(orderID int64) (*Entry, bool) {
	e, ok := ob.ordersByID[orderID]
	return e, ok
}

func (ob *OrderBook) BestBid() (*Entry, bool) {
	return best(ob.bids)
}

func (ob *OrderBook) BestAsk() (*Entry, bool) {
	return best(ob.asks)
}

// Best returns the most competitive entry on side.
func (ob *OrderBook) Best(side Side) (*Entry, bool) {
	return best(ob.levels(side))
}

func best(tree *btree.BTreeG[*priceLevel]) (*Entry, bool) {
	lvl, ok := tree.Min()
	if !ok {
		return nil, false
	}
	return lvl.front(), true
}

// Entries lists the resting entries of side in matching priority.
func (ob *OrderBook) Entries(side Side) []*Entry {
	var out []*Entry
	ob.levels(side).Ascend(func(lvl *priceLevel) bool {
		for i := 0; i < lvl.orders.Len(); i++ {
			out = append(out, lvl.orders.At(i))
		}
		return true
	})
	return out
}

type Level struct {
	Price decimal.Decimal `json:"price"`
	Qty   int64           `json:"qty"`
}

// MarshalJSON writes the price as an exact JSON number.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Price json.Number `json:"price"`
		Qty   int64       `json:"qty"`
	}{json.Number(l.Price.String()), l.Qty})
}

// Depth is the aggregated view of the book, best level first on each side.
type Depth struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

func (ob *OrderBook) Depth(n int) Depth {
	return Depth{
		Bids: aggregate(ob.bids, n),
		Asks: aggregate(ob.asks, n),
	}
}

func aggregate(tree *btree.BTreeG[*priceLevel], n int) []Level {
	if n <= 0 {
		return []Level{}
	}
	levels := make([]Level, 0, min(n, tree.Len()))
	tree.Ascend(func(lvl *priceLevel) bool {
		levels = append(levels, Level{Price: lvl.price, Qty: lvl.total})
		return len(levels) < n
	})
	return levels
}
