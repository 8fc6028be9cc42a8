// Package adapter talks to the external services of the sync job: the Notion
// holding database and the two quote providers.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/portfolio-sync/internal/errors"
)

// QuoteProvider fetches the latest price of one instrument code
type QuoteProvider interface {
	// Name identifies the provider in logs and breaker state
	Name() string

	// Price returns the latest traded price of code in the provider's currency
	Price(ctx context.Context, code string) (decimal.Decimal, error)
}

// NewHTTPClient creates the shared outbound client; every call is bounded by timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// maxErrorBody caps how much of an error response is kept for diagnostics
const maxErrorBody = 2048

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}

// wrapTransportError classifies a failed round trip of a quote provider
func wrapTransportError(provider string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewProviderTimeoutError(provider, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewProviderTimeoutError(provider, err)
	}
	return apperrors.NewProviderError(provider, fmt.Errorf("request failed: %w", err))
}
