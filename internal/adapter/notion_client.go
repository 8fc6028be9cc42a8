package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/portfolio-sync/internal/config"
	apperrors "github.com/portfolio-sync/internal/errors"
	"github.com/portfolio-sync/internal/logging"
	"github.com/portfolio-sync/internal/retry"
	"github.com/portfolio-sync/internal/types"
)

// notionPageSize is the largest page the query endpoint returns
const notionPageSize = 100

// NotionClient reads and patches holding rows of a Notion database
type NotionClient struct {
	baseURL        string
	apiKey         string
	version        string
	databaseID     string
	props          config.PropertyNames
	defaultWeekday time.Weekday
	client         *http.Client
	retryConfig    *retry.RetryConfig
}

// NewNotionClient creates a Notion API client
func NewNotionClient(cfg config.NotionConfig, defaultWeekday time.Weekday, client *http.Client) *NotionClient {
	retryConfig := retry.DefaultRetryConfig()
	retryConfig.MaxAttempts = cfg.QueryMaxAttempts
	retryConfig.ShouldRetry = shouldRetryNotion

	return &NotionClient{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		version:        cfg.Version,
		databaseID:     cfg.DatabaseID,
		props:          cfg.Properties,
		defaultWeekday: defaultWeekday,
		client:         client,
		retryConfig:    retryConfig,
	}
}

// shouldRetryNotion retries rate limiting, server errors and failed round trips
func shouldRetryNotion(err error) bool {
	if apperrors.IsRetryable(err) {
		return true
	}
	catErr := apperrors.Categorize(err)
	return catErr != nil && catErr.Category == apperrors.CategoryNotion && catErr.StatusCode == 0
}

// QueryHoldings reads every row of the database, following pagination.
// Archived rows are dropped.
func (c *NotionClient) QueryHoldings(ctx context.Context) ([]types.Holding, error) {
	logger := logging.FromContext(ctx)

	var holdings []types.Holding
	cursor := ""
	for page := 1; ; page++ {
		var resp notionQueryResponse
		err := retry.Do(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
			resp = notionQueryResponse{}
			return c.do(ctx, http.MethodPost, fmt.Sprintf("/databases/%s/query", c.databaseID), "query",
				notionQueryRequest{PageSize: notionPageSize, StartCursor: cursor}, &resp)
		})
		if err != nil {
			return nil, err
		}

		for _, p := range resp.Results {
			if p.Archived {
				continue
			}
			holdings = append(holdings, ParseHolding(p, c.props, c.defaultWeekday))
		}

		logger.WithFields(map[string]interface{}{
			"page":    page,
			"rows":    len(resp.Results),
			"hasMore": resp.HasMore,
		}).Debug("Fetched holding page")

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
	}

	return holdings, nil
}

// UpdateHolding patches one row. It is not retried.
func (c *NotionClient) UpdateHolding(ctx context.Context, pageID string, update types.HoldingUpdate) error {
	if _, err := uuid.Parse(pageID); err != nil {
		return apperrors.NewInvalidHoldingError(pageID, "page id is not a uuid")
	}
	return c.do(ctx, http.MethodPatch, "/pages/"+pageID, "update", buildUpdateRequest(update, c.props), nil)
}

// do sends one JSON request and decodes the answer into out when out is non-nil
func (c *NotionClient) do(ctx context.Context, method, path, operation string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewNotionError(operation, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewNotionError(operation, resp.StatusCode,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, readErrorBody(resp.Body)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewParseError("notion "+operation+" response", "invalid json", err)
	}
	return nil
}
