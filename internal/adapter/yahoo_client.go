package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/config"
	apperrors "github.com/portfolio-sync/internal/errors"
)

// ErrEmptySeries is returned when a chart has no usable close, e.g. outside trading hours
var ErrEmptySeries = errors.New("chart series has no close")

const closeSeriesPath = "$.chart.result[0].indicators.quote[0].close"

// ChartWindow selects the range and bar interval of a chart request
type ChartWindow struct {
	Range    string
	Interval string
}

var (
	// IntradayWindow is today's one-minute bars
	IntradayWindow = ChartWindow{Range: "1d", Interval: "1m"}
	// DailyWindow is the last few daily bars, used when there is no intraday data
	DailyWindow = ChartWindow{Range: "5d", Interval: "1d"}
)

// YahooClient reads quotes and exchange rates from the Yahoo Finance chart API
type YahooClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewYahooClient creates a Yahoo Finance chart client
func NewYahooClient(cfg config.QuotesConfig, client *http.Client) *YahooClient {
	return &YahooClient{
		baseURL:   cfg.YahooBaseURL,
		userAgent: cfg.UserAgent,
		client:    client,
	}
}

// Name returns the provider name
func (c *YahooClient) Name() string {
	return "yahoo"
}

// Price returns the latest close of symbol. The intraday series is tried
// first and the daily series when the intraday one is empty.
func (c *YahooClient) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := c.LastClose(ctx, symbol, IntradayWindow)
	if errors.Is(err, ErrEmptySeries) {
		return c.LastClose(ctx, symbol, DailyWindow)
	}
	return price, err
}

// LastClose returns the last non-null close of symbol within window
func (c *YahooClient) LastClose(ctx context.Context, symbol string, window ChartWindow) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("range", window.Range)
	q.Set("interval", window.Interval)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, wrapTransportError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		catErr := apperrors.NewProviderStatusError(c.Name(), resp.StatusCode)
		catErr.Details["symbol"] = symbol
		catErr.Details["body"] = readErrorBody(resp.Body)
		return decimal.Zero, catErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, apperrors.NewProviderError(c.Name(), fmt.Errorf("failed to read response: %w", err))
	}

	return lastCloseFromChart(body)
}

// lastCloseFromChart extracts the newest close from a chart payload.
// Closes are null for minutes without trades, so the series is read backwards.
func lastCloseFromChart(body []byte) (decimal.Decimal, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return decimal.Zero, apperrors.NewParseError("yahoo chart", "invalid json", err)
	}

	raw, err := jsonpath.Get(closeSeriesPath, payload)
	if err != nil {
		return decimal.Zero, apperrors.NewParseError("yahoo chart", "close series missing", ErrEmptySeries)
	}

	closes, ok := raw.([]interface{})
	if !ok {
		return decimal.Zero, apperrors.NewParseError("yahoo chart", "close series is not a list", nil)
	}

	for i := len(closes) - 1; i >= 0; i-- {
		n, ok := closes[i].(json.Number)
		if !ok {
			continue
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil || !v.IsPositive() {
			continue
		}
		return v, nil
	}

	return decimal.Zero, apperrors.NewParseError("yahoo chart", "no close in series", ErrEmptySeries)
}
