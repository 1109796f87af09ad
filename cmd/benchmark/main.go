package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/oms"
	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/joripage/exchange-sim/pkg/oms/repo"
	"github.com/shopspring/decimal"
)

const (
	minPriceCents = 10_000
	maxPriceCents = 20_000
	minQty        = 1
	maxQty        = 100
)

func randomOrder(rnd *rand.Rand, symbol string) *model.OrderRequest {
	side := model.OrderSideBuy
	if rnd.Intn(2) == 0 {
		side = model.OrderSideSell
	}
	req := &model.OrderRequest{
		InstrumentSymbol: symbol,
		Side:             side,
		Type:             model.OrderTypeLimit,
		Quantity:         int64(rnd.Intn(maxQty-minQty+1) + minQty),
	}
	if rnd.Intn(20) == 0 {
		req.Type = model.OrderTypeMarket
		return req
	}
	price := decimal.New(int64(minPriceCents+rnd.Intn(maxPriceCents-minPriceCents)), -2)
	req.Price = &price
	return req
}

func main() {
	var numOrders, numSymbols, numWorkers, numOwners int
	flag.IntVar(&numOrders, "orders", 200_000, "Orders to submit")
	flag.IntVar(&numSymbols, "symbols", 4, "Instruments to spread orders over")
	flag.IntVar(&numWorkers, "workers", 8, "Concurrent submitters")
	flag.IntVar(&numOwners, "owners", 100, "Distinct accounts")
	flag.Parse()

	ctx := context.Background()
	svc := oms.NewOMS(repo.NewInMemoryRepo(), oms.WithLogger(logging.NewLogger(logging.WARN)))

	symbols := make([]string, numSymbols)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("SYM%d", i)
		if _, err := svc.CreateInstrument(ctx, symbols[i], "", decimal.NewFromInt(150)); err != nil {
			panic(err)
		}
	}
	owners := make([]string, numOwners)
	for i := range owners {
		owners[i] = fmt.Sprintf("user-%03d", i)
		if _, err := svc.OpenAccount(ctx, owners[i], decimal.NewFromInt(1_000_000_000)); err != nil {
			panic(err)
		}
		for _, s := range symbols {
			if err := svc.DepositHoldings(ctx, owners[i], s, 10_000_000); err != nil {
				panic(err)
			}
		}
	}

	var accepted, rejected, filledQty atomic.Int64
	var next atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for next.Add(1) <= int64(numOrders) {
				req := randomOrder(rnd, symbols[rnd.Intn(len(symbols))])
				order, err := svc.Submit(ctx, req, owners[rnd.Intn(len(owners))])
				if err != nil {
					rejected.Add(1)
					continue
				}
				accepted.Add(1)
				filledQty.Add(order.FilledQuantity)
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("--------")
	fmt.Printf("Total Orders      : %d\n", numOrders)
	fmt.Printf("Accepted          : %d\n", accepted.Load())
	fmt.Printf("Rejected          : %d\n", rejected.Load())
	fmt.Printf("Taker Filled Qty  : %d\n", filledQty.Load())
	fmt.Printf("Time Taken        : %s\n", elapsed)
	fmt.Printf("Throughput        : %.0f orders/s\n", float64(numOrders)/elapsed.Seconds())
}
