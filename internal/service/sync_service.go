package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/portfolio-sync/internal/errors"
	"github.com/portfolio-sync/internal/logging"
	"github.com/portfolio-sync/internal/ratelimit"
	"github.com/portfolio-sync/internal/types"
)

// RunSummary counts what a run did with each holding
type RunSummary struct {
	RunID        string
	Date         types.Date
	Total        int
	Updated      int
	Purchased    int
	Skipped      int
	Failed       int
	Rate         decimal.Decimal
	RateFallback bool
	DryRun       bool
	Duration     time.Duration
}

// outcome is what happened to one holding
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeUpdated
	outcomePurchased
)

// SyncService runs the price sync pipeline once
type SyncService struct {
	store  HoldingStore
	rates  RateSource
	prices PriceSource
	pacer  *ratelimit.Pacer
	dryRun bool
}

// NewSyncService creates a sync service. A nil pacer disables pacing.
func NewSyncService(store HoldingStore, rates RateSource, prices PriceSource, pacer *ratelimit.Pacer, dryRun bool) *SyncService {
	if pacer == nil {
		pacer = ratelimit.NewPacer(0)
	}
	return &SyncService{
		store:  store,
		rates:  rates,
		prices: prices,
		pacer:  pacer,
		dryRun: dryRun,
	}
}

// Run resolves the exchange rate, reads every holding and updates each one
// in turn. A failure of one holding is counted and the run continues; only a
// failed holding query or a cancelled context ends the run with an error.
func (s *SyncService) Run(ctx context.Context, today types.Date) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{
		RunID:  uuid.New().String(),
		Date:   today,
		DryRun: s.dryRun,
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"run_id": summary.RunID,
		"date":   today.String(),
	})
	ctx = logging.WithLogger(ctx, logger)

	fx := s.rates.Quote(ctx)
	summary.Rate = fx.Rate
	summary.RateFallback = fx.Fallback
	logger.WithFields(map[string]interface{}{
		"rate":     displayAmount(fx.Rate, "KRW"),
		"fallback": fx.Fallback,
		"cached":   fx.Cached,
	}).Info("Exchange rate resolved")

	holdings, err := s.store.QueryHoldings(ctx)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, fmt.Errorf("failed to query holdings: %w", err)
	}
	summary.Total = len(holdings)
	if len(holdings) == 0 {
		logger.Info("No holdings to sync")
		summary.Duration = time.Since(start)
		return summary, nil
	}
	logger.WithField("holdings", len(holdings)).Info("Holdings loaded")

	for _, h := range holdings {
		if err := s.pacer.Wait(ctx); err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("sync interrupted: %w", err)
		}

		res, err := s.processHolding(ctx, h, today, fx.Rate)
		if err != nil {
			summary.Failed++
			logger.WithFields(map[string]interface{}{
				"page_id": h.PageID,
				"name":    h.Name,
			}).WithError(err).Error("Holding update failed")
			continue
		}

		switch res {
		case outcomePurchased:
			summary.Purchased++
			summary.Updated++
		case outcomeUpdated:
			summary.Updated++
		default:
			summary.Skipped++
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// processHolding prices one holding, applies the auto-buy rule and writes the
// result. Panics are recovered into an error so one bad row cannot stop the run.
func (s *SyncService) processHolding(ctx context.Context, h types.Holding, today types.Date, rate decimal.Decimal) (res outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = outcomeSkipped
			err = apperrors.NewInvalidHoldingError(h.PageID, fmt.Sprintf("panic while processing: %v", r))
		}
	}()

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"page_id":  h.PageID,
		"name":     h.Name,
		"code":     h.Code,
		"category": h.Category,
	})

	if !h.Processable() {
		logger.Info("Skipping holding without code or category")
		return outcomeSkipped, nil
	}

	price := s.prices.Resolve(ctx, h.Code, h.Category)
	if !price.Available {
		logger.Warn("Price unavailable, holding left unchanged")
		return outcomeSkipped, nil
	}

	decision := Decide(h, today, price, rate)
	update := types.HoldingUpdate{
		Price:        price.Value,
		ExchangeRate: rate,
	}
	if decision.ShouldBuy {
		qty := decision.NewQuantity
		day := today
		update.Quantity = &qty
		update.LastBuyDate = &day
	}

	logger = logger.WithFields(map[string]interface{}{
		"price":   displayAmount(price.Value, h.Category.Currency()),
		"autobuy": decision.Reason,
	})
	if decision.ShouldBuy {
		logger = logger.WithFields(map[string]interface{}{
			"add_quantity": decision.AddQuantity.String(),
			"new_quantity": decision.NewQuantity.String(),
		})
	}

	if s.dryRun {
		logger.Info("Dry run, update not written")
	} else {
		if err := s.store.UpdateHolding(ctx, h.PageID, update); err != nil {
			return outcomeSkipped, err
		}
		logger.Info("Holding updated")
	}

	if decision.ShouldBuy {
		return outcomePurchased, nil
	}
	return outcomeUpdated, nil
}
