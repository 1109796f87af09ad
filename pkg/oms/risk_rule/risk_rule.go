package riskrule

import "github.com/joripage/exchange-sim/pkg/oms/model"

// RiskRule vets an order request before anything is reserved.
type RiskRule interface {
	Check(req *model.OrderRequest, instrument *model.Instrument) error
}
