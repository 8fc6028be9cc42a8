package service

import (
	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/types"
)

// quantityPlaces is the precision holding quantities are kept at
const quantityPlaces = 4

// Reasons a decision did not result in a purchase
const (
	ReasonPurchased          = "purchased"
	ReasonDisabled           = "auto-buy disabled"
	ReasonAlreadyBoughtToday = "already bought today"
	ReasonNotScheduled       = "not scheduled today"
	ReasonPriceUnavailable   = "price unavailable"
	ReasonNoRule             = "no fixed amount or quantity"
	ReasonZeroQuantity       = "computed quantity rounds to zero"
)

// Decision is the outcome of the auto-buy rule for one holding on one day
type Decision struct {
	ShouldBuy   bool
	AddQuantity decimal.Decimal
	NewQuantity decimal.Decimal
	Reason      string
}

// Decide applies the auto-buy rule. A holding buys at most once per calendar
// day: when enabled, not yet bought today, scheduled today and priced.
// A fixed amount takes precedence over a fixed quantity; overseas prices are
// converted with rate before dividing the amount.
func Decide(h types.Holding, today types.Date, price types.Price, rate decimal.Decimal) Decision {
	noBuy := func(reason string) Decision {
		return Decision{NewQuantity: h.CurrentQuantity, Reason: reason}
	}

	switch {
	case !h.AutoBuyEnabled:
		return noBuy(ReasonDisabled)
	case h.BoughtOn(today):
		return noBuy(ReasonAlreadyBoughtToday)
	case !h.Frequency.Matches(today):
		return noBuy(ReasonNotScheduled)
	case !price.Available || !price.Value.IsPositive():
		return noBuy(ReasonPriceUnavailable)
	}

	var add decimal.Decimal
	switch {
	case h.FixedAmount.IsPositive():
		cost := price.Value
		if h.Category == types.CategoryOverseas {
			cost = cost.Mul(rate)
		}
		if !cost.IsPositive() {
			return noBuy(ReasonPriceUnavailable)
		}
		add = h.FixedAmount.Div(cost)
	case h.FixedQuantity.IsPositive():
		add = h.FixedQuantity
	default:
		return noBuy(ReasonNoRule)
	}

	add = add.Round(quantityPlaces)
	if !add.IsPositive() {
		return noBuy(ReasonZeroQuantity)
	}

	return Decision{
		ShouldBuy:   true,
		AddQuantity: add,
		NewQuantity: h.CurrentQuantity.Add(add).Round(quantityPlaces),
		Reason:      ReasonPurchased,
	}
}
