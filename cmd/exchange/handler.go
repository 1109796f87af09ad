package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/oms"
	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// command is one JSON line read from the input. Op defaults to submit.
type command struct {
	Op       string              `json:"op"`
	Owner    string              `json:"owner"`
	Order    *model.OrderRequest `json:"order,omitempty"`
	Symbol   string              `json:"symbol,omitempty"`
	Name     string              `json:"name,omitempty"`
	Levels   int                 `json:"levels,omitempty"`
	Amount   decimal.Decimal     `json:"amount"`
	Quantity int64               `json:"quantity,omitempty"`
}

type replyError struct {
	Kind    oms.ErrorKind `json:"kind,omitempty"`
	Message string        `json:"message"`
}

type reply struct {
	OK     bool        `json:"ok"`
	Result any         `json:"result,omitempty"`
	Error  *replyError `json:"error,omitempty"`
}

var errUnknownOp = errors.New("unknown op")

type handler struct {
	svc oms.IOMS
}

// serve answers every line of in with one line on out until in ends or ctx
// is done.
func (h *handler) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd command
		var rep reply
		if err := json.Unmarshal(line, &cmd); err != nil {
			rep = failure(fmt.Errorf("decode command: %w", err))
		} else {
			reqCtx := logging.WithRequestID(ctx, logging.NewRequestID())
			result, err := h.handle(reqCtx, &cmd)
			if err != nil {
				rep = failure(err)
			} else {
				rep = reply{OK: true, Result: result}
			}
		}
		if err := enc.Encode(rep); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (h *handler) handle(ctx context.Context, cmd *command) (any, error) {
	switch cmd.Op {
	case "", "submit":
		if cmd.Order == nil {
			return nil, &oms.Error{Kind: oms.KindInvalidOrder, Message: "order is required"}
		}
		return h.svc.Submit(ctx, cmd.Order, cmd.Owner)
	case "depth":
		return h.svc.Depth(ctx, cmd.Symbol, cmd.Levels)
	case "instruments":
		return h.svc.ListInstruments(ctx)
	case "create_instrument":
		return h.svc.CreateInstrument(ctx, cmd.Symbol, cmd.Name, cmd.Amount)
	case "open_account":
		return h.svc.OpenAccount(ctx, cmd.Owner, cmd.Amount)
	case "deposit_cash":
		if err := h.svc.DepositCash(ctx, cmd.Owner, cmd.Amount); err != nil {
			return nil, err
		}
		return h.svc.GetAccount(ctx, cmd.Owner)
	case "deposit_holdings":
		if err := h.svc.DepositHoldings(ctx, cmd.Owner, cmd.Symbol, cmd.Quantity); err != nil {
			return nil, err
		}
		return h.svc.ListHoldings(ctx, cmd.Owner)
	case "account":
		return h.svc.GetAccount(ctx, cmd.Owner)
	case "holdings":
		return h.svc.ListHoldings(ctx, cmd.Owner)
	case "orders":
		return h.svc.ListOrders(ctx, cmd.Owner)
	}
	return nil, fmt.Errorf("%w %q", errUnknownOp, cmd.Op)
}

func failure(err error) reply {
	var e *oms.Error
	if errors.As(err, &e) {
		return reply{Error: &replyError{Kind: e.Kind, Message: e.Message}}
	}
	return reply{Error: &replyError{Message: err.Error()}}
}
