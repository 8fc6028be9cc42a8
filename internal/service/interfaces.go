// Package service holds the sync pipeline: rate and price resolution, the
// auto-buy decision and the per-holding update loop.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/types"
)

// HoldingStore reads and patches holding rows
type HoldingStore interface {
	QueryHoldings(ctx context.Context) ([]types.Holding, error)
	UpdateHolding(ctx context.Context, pageID string, update types.HoldingUpdate) error
}

// QuoteCache stores recently resolved prices and rates.
// Implementations report a miss with ok == false and a nil error.
type QuoteCache interface {
	GetPrice(ctx context.Context, category types.Category, code string) (decimal.Decimal, bool, error)
	SetPrice(ctx context.Context, category types.Category, code string, price decimal.Decimal) error
	GetRate(ctx context.Context, pair string) (decimal.Decimal, bool, error)
	SetRate(ctx context.Context, pair string, rate decimal.Decimal) error
}

// RateSource resolves the exchange rate of a run
type RateSource interface {
	Quote(ctx context.Context) FXQuote
}

// PriceSource resolves the price of one holding
type PriceSource interface {
	Resolve(ctx context.Context, code string, category types.Category) types.Price
}
