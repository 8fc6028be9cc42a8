package service

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/types"
)

var errUpstream = errors.New("upstream unavailable")

// fakeProvider answers from a map of code to price; missing codes fail.
// codeErrs fails single codes with a specific error.
type fakeProvider struct {
	name     string
	prices   map[string]decimal.Decimal
	codeErrs map[string]error
	err      error
	calls    int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Price(ctx context.Context, code string) (decimal.Decimal, error) {
	p.calls++
	if p.err != nil {
		return decimal.Zero, p.err
	}
	if err, ok := p.codeErrs[code]; ok {
		return decimal.Zero, err
	}
	v, ok := p.prices[code]
	if !ok {
		return decimal.Zero, errUpstream
	}
	return v, nil
}

// fakeStore keeps holdings in memory and applies updates to them
type fakeStore struct {
	mu        sync.Mutex
	holdings  []types.Holding
	queryErr  error
	updateErr map[string]error
	updates   map[string][]types.HoldingUpdate
}

func newFakeStore(holdings ...types.Holding) *fakeStore {
	return &fakeStore{
		holdings:  holdings,
		updateErr: map[string]error{},
		updates:   map[string][]types.HoldingUpdate{},
	}
}

func (s *fakeStore) QueryHoldings(ctx context.Context) ([]types.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]types.Holding, len(s.holdings))
	copy(out, s.holdings)
	return out, nil
}

func (s *fakeStore) UpdateHolding(ctx context.Context, pageID string, update types.HoldingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[pageID]; err != nil {
		return err
	}
	s.updates[pageID] = append(s.updates[pageID], update)
	for i := range s.holdings {
		if s.holdings[i].PageID != pageID {
			continue
		}
		if update.Quantity != nil {
			s.holdings[i].CurrentQuantity = *update.Quantity
		}
		if update.LastBuyDate != nil {
			d := *update.LastBuyDate
			s.holdings[i].LastBuyDate = &d
		}
	}
	return nil
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.updates {
		n += len(u)
	}
	return n
}

// fixedRates always answers the same quote
type fixedRates struct {
	quote FXQuote
}

func (r fixedRates) Quote(ctx context.Context) FXQuote { return r.quote }

// mapPrices answers from a map keyed by code; codes set in panics panic instead
type mapPrices struct {
	prices map[string]types.Price
	panics map[string]bool
}

func (m mapPrices) Resolve(ctx context.Context, code string, category types.Category) types.Price {
	if m.panics[code] {
		panic("malformed quote for " + code)
	}
	return m.prices[code]
}
