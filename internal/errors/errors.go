package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryConfig represents missing or invalid process configuration
	CategoryConfig ErrorCategory = "config"
	// CategoryProvider represents quote or exchange rate provider errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryParse represents upstream payloads that could not be interpreted
	CategoryParse ErrorCategory = "parse"
	// CategoryNotion represents holding database API errors
	CategoryNotion ErrorCategory = "notion"
	// CategoryValidation represents holding records that cannot be processed
	CategoryValidation ErrorCategory = "validation"
	// CategoryCache represents quote cache errors
	CategoryCache ErrorCategory = "cache"
)

// CategorizedError represents an error with category and, when it came from
// an HTTP upstream, the status code that upstream answered.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Configuration Errors

// NewConfigMissingError creates an error listing required settings that are not set
func NewConfigMissingError(keys ...string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryConfig,
		Code:     "CONFIG_MISSING",
		Message:  fmt.Sprintf("required configuration not set: %s", strings.Join(keys, ", ")),
		Details: map[string]interface{}{
			"keys": keys,
		},
	}
}

// NewInvalidConfigError creates an invalid configuration value error
func NewInvalidConfigError(key string, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryConfig,
		Code:     "CONFIG_INVALID",
		Message:  fmt.Sprintf("invalid configuration '%s': %s", key, reason),
		Details: map[string]interface{}{
			"key":    key,
			"reason": reason,
		},
	}
}

// Provider Errors

// NewProviderError creates a quote provider error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("quote provider error: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderStatusError creates an error for a non-2xx answer from a quote provider
func NewProviderStatusError(provider string, statusCode int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: statusCode,
		Code:       "PROVIDER_STATUS",
		Message:    fmt.Sprintf("quote provider %s answered %d %s", provider, statusCode, http.StatusText(statusCode)),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderTimeoutError creates a provider timeout error
func NewProviderTimeoutError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusGatewayTimeout,
		Code:       "PROVIDER_TIMEOUT",
		Message:    fmt.Sprintf("quote provider timeout: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewParseError creates an error for an upstream payload that could not be read
func NewParseError(source string, reason string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryParse,
		Code:     "PARSE_ERROR",
		Message:  fmt.Sprintf("cannot parse %s: %s", source, reason),
		Cause:    cause,
		Details: map[string]interface{}{
			"source": source,
			"reason": reason,
		},
	}
}

// Notion Errors

// NewNotionError creates a holding database API error
func NewNotionError(operation string, statusCode int, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotion,
		StatusCode: statusCode,
		Code:       "NOTION_ERROR",
		Message:    fmt.Sprintf("notion %s failed", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Validation Errors

// NewInvalidHoldingError creates an error for a holding record that cannot be processed
func NewInvalidHoldingError(pageID string, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryValidation,
		Code:     "INVALID_HOLDING",
		Message:  fmt.Sprintf("holding %s: %s", pageID, reason),
		Details: map[string]interface{}{
			"pageId": pageID,
			"reason": reason,
		},
	}
}

// Cache Errors

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryCache,
		Code:     "CACHE_ERROR",
		Message:  fmt.Sprintf("cache error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Error Helpers

// Categorize returns the CategorizedError in err's chain, or nil
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}
	return nil
}

// IsRetryable reports whether an upstream is likely to accept the same request later:
// rate limiting and server side failures are, everything else is not.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryNotion, CategoryProvider:
		return catErr.StatusCode == http.StatusTooManyRequests ||
			catErr.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// IsConfigError determines if an error is a configuration error
func IsConfigError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryConfig
}
