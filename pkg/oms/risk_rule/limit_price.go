package riskrule

import (
	"fmt"

	"github.com/joripage/exchange-sim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LimitPriceRule keeps LIMIT prices within a percentage band around the
// instrument's display price.
type LimitPriceRule struct {
	bandPercent decimal.Decimal
}

func NewLimitPriceRule(bandPercent decimal.Decimal) *LimitPriceRule {
	return &LimitPriceRule{bandPercent: bandPercent}
}

func (r *LimitPriceRule) Check(req *model.OrderRequest, instrument *model.Instrument) error {
	if req.Type != model.OrderTypeLimit || req.Price == nil {
		return nil
	}
	if !instrument.DisplayPrice.IsPositive() || !r.bandPercent.IsPositive() {
		return nil
	}

	band := instrument.DisplayPrice.Mul(r.bandPercent).Div(hundred)
	ceil := instrument.DisplayPrice.Add(band)
	floor := instrument.DisplayPrice.Sub(band)
	if req.Price.GreaterThan(ceil) || req.Price.LessThan(floor) {
		return fmt.Errorf("price %s outside limit [%s, %s]", req.Price, floor, ceil)
	}
	return nil
}
