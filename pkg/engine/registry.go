package engine

import (
	"sort"
	"sync"

	"github.com/joripage/exchange-sim/pkg/orderbook"
)

// Market pairs a symbol's order book with the lock that serializes every
// mutation of it.
type Market struct {
	mu     sync.Mutex
	symbol string
	book   *orderbook.OrderBook
	// stale is set when a failed unit left the book out of step with storage
	// and it could not be rebuilt yet.
	stale bool
}

func (m *Market) Symbol() string {
	return m.symbol
}

// Registry hands out exactly one Market per symbol.
type Registry struct {
	mu      sync.Mutex // creation path only
	markets sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the symbol's market, creating it on first use.
func (r *Registry) Get(symbol string) *Market {
	if v, ok := r.markets.Load(symbol); ok {
		return v.(*Market)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have won the race while we waited
	if v, ok := r.markets.Load(symbol); ok {
		return v.(*Market)
	}

	m := &Market{
		symbol: symbol,
		book:   orderbook.New(symbol),
	}
	r.markets.Store(symbol, m)
	return m
}

func (r *Registry) Symbols() []string {
	var symbols []string
	r.markets.Range(func(k, _ any) bool {
		symbols = append(symbols, k.(string))
		return true
	})
	sort.Strings(symbols)
	return symbols
}
