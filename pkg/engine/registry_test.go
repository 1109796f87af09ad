package engine

import (
	"sync"
	"testing"
)

func TestRegistryConcurrentFirstUse(t *testing.T) {
	r := NewRegistry()

	const workers = 64
	got := make([]*Market, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got[i] = r.Get("ABC")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < workers; i++ {
		if got[i] != got[0] {
			t.Fatalf("worker %d saw a different market", i)
		}
	}
	if s := r.Symbols(); len(s) != 1 || s[0] != "ABC" {
		t.Fatalf("expected one symbol, got %v", s)
	}
}

func TestRegistrySymbolsSorted(t *testing.T) {
	r := NewRegistry()
	for _, s := range []string{"MSFT", "AAPL", "GOOG"} {
		r.Get(s)
	}

	want := []string{"AAPL", "GOOG", "MSFT"}
	got := r.Symbols()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if r.Get("AAPL").Symbol() != "AAPL" {
		t.Fatalf("market carries the wrong symbol")
	}
}
