package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/config"
	apperrors "github.com/portfolio-sync/internal/errors"
)

// naverPriceSelector locates the current price on the item main page
const naverPriceSelector = "#chart_area > div.rate_info > div > p.no_today > em > span.blind"

// NaverClient scrapes domestic quotes from the Naver Finance item page
type NaverClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNaverClient creates a Naver Finance client
func NewNaverClient(cfg config.QuotesConfig, client *http.Client) *NaverClient {
	return &NaverClient{
		baseURL:   cfg.NaverBaseURL,
		userAgent: cfg.UserAgent,
		client:    client,
	}
}

// Name returns the provider name
func (c *NaverClient) Name() string {
	return "naver"
}

// Price returns the current KRW price of a KRX code
func (c *NaverClient) Price(ctx context.Context, code string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/item/main.naver?code=%s", c.baseURL, url.QueryEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, wrapTransportError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, apperrors.NewProviderStatusError(c.Name(), resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return decimal.Zero, apperrors.NewParseError("naver quote page", "invalid html", err)
	}

	return parseNaverPrice(doc)
}

// parseNaverPrice reads the price node, e.g. "71,500"
func parseNaverPrice(doc *goquery.Document) (decimal.Decimal, error) {
	text := strings.TrimSpace(doc.Find(naverPriceSelector).First().Text())
	if text == "" {
		return decimal.Zero, apperrors.NewParseError("naver quote page", "price node not found", nil)
	}

	price, err := decimal.NewFromString(strings.ReplaceAll(text, ",", ""))
	if err != nil {
		return decimal.Zero, apperrors.NewParseError("naver quote page", fmt.Sprintf("price %q is not a number", text), err)
	}
	return price, nil
}
