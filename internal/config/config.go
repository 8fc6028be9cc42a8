// Package config provides configuration management for the portfolio sync job.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal CI images

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	apperrors "github.com/portfolio-sync/internal/errors"
	"github.com/portfolio-sync/internal/types"
)

// Config holds all application configuration
type Config struct {
	Notion   NotionConfig
	Quotes   QuotesConfig
	FX       FXConfig
	AutoBuy  AutoBuyConfig
	Sync     SyncConfig
	HTTP     HTTPConfig
	Breaker  BreakerConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Logging  LoggingConfig
	Timezone *time.Location
}

// NotionConfig holds Notion API configuration
type NotionConfig struct {
	APIKey           string
	DatabaseID       string
	BaseURL          string
	Version          string
	QueryMaxAttempts int
	Properties       PropertyNames
}

// PropertyNames maps holding fields to Notion property names
type PropertyNames struct {
	Name            string
	Code            string
	Category        string
	Price           string
	ExchangeRate    string
	AutoBuy         string
	Frequency       string
	LastBuyDate     string
	FixedAmount     string
	FixedQuantity   string
	CurrentQuantity string
}

// QuotesConfig holds quote source configuration
type QuotesConfig struct {
	NaverBaseURL string
	YahooBaseURL string
	UserAgent    string
}

// FXConfig holds exchange rate configuration
type FXConfig struct {
	Pair         string
	FallbackRate decimal.Decimal
}

// AutoBuyConfig holds the recurring purchase configuration
type AutoBuyConfig struct {
	Weekday time.Weekday // default weekday for weekly rules
}

// SyncConfig holds pipeline configuration
type SyncConfig struct {
	RecordDelay time.Duration
	DryRun      bool
}

// HTTPConfig holds outbound HTTP configuration
type HTTPConfig struct {
	Timeout time.Duration
}

// BreakerConfig holds per-provider circuit breaker configuration
type BreakerConfig struct {
	MaxFailures int
	Cooldown    time.Duration
}

// RedisConfig holds Redis configuration. An empty Addr disables the quote cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig holds quote cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// LoadConfig loads configuration from .env file and environment variables.
// It does not check required values; call Validate before doing any I/O.
func LoadConfig() (*Config, error) {
	// Load .env file (optional, CI injects secrets directly)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	weekday, err := types.ParseWeekday(getEnv("AUTOBUY_WEEKDAY", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTOBUY_WEEKDAY: %w", err)
	}

	tz, err := time.LoadLocation(getEnv("TIMEZONE", "Asia/Seoul"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	config := &Config{
		Notion: NotionConfig{
			APIKey:           getEnv("NOTION_API_KEY", ""),
			DatabaseID:       getEnv("DATABASE_ID", ""),
			BaseURL:          strings.TrimRight(getEnv("NOTION_BASE_URL", "https://api.notion.com/v1"), "/"),
			Version:          getEnv("NOTION_VERSION", "2022-06-28"),
			QueryMaxAttempts: getEnvAsInt("NOTION_QUERY_MAX_ATTEMPTS", 3),
			Properties:       loadPropertyNames(),
		},
		Quotes: QuotesConfig{
			NaverBaseURL: strings.TrimRight(getEnv("NAVER_BASE_URL", "https://finance.naver.com"), "/"),
			YahooBaseURL: strings.TrimRight(getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"), "/"),
			UserAgent:    getEnv("QUOTE_USER_AGENT", defaultUserAgent),
		},
		FX: FXConfig{
			Pair:         getEnv("FX_PAIR", "KRW=X"),
			FallbackRate: getEnvAsDecimal("FX_FALLBACK_RATE", decimal.NewFromInt(1300)),
		},
		AutoBuy: AutoBuyConfig{
			Weekday: weekday,
		},
		Sync: SyncConfig{
			RecordDelay: getEnvAsDuration("SYNC_RECORD_DELAY", 500*time.Millisecond),
			DryRun:      getEnvAsBool("SYNC_DRY_RUN", false),
		},
		HTTP: HTTPConfig{
			Timeout: getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),
		},
		Breaker: BreakerConfig{
			MaxFailures: getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			Cooldown:    getEnvAsDuration("BREAKER_COOLDOWN", 2*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Timezone: tz,
	}

	return config, nil
}

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Notion.APIKey == "" {
		missing = append(missing, "NOTION_API_KEY")
	}
	if c.Notion.DatabaseID == "" {
		missing = append(missing, "DATABASE_ID")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigMissingError(missing...)
	}
	if !c.FX.FallbackRate.IsPositive() {
		return apperrors.NewInvalidConfigError("FX_FALLBACK_RATE", "must be positive")
	}
	return nil
}

// loadPropertyNames loads the Notion column names, defaulting to the Korean schema
func loadPropertyNames() PropertyNames {
	return PropertyNames{
		Name:            getEnv("NOTION_PROP_NAME", "종목명"),
		Code:            getEnv("NOTION_PROP_CODE", "종목코드"),
		Category:        getEnv("NOTION_PROP_CATEGORY", "분류"),
		Price:           getEnv("NOTION_PROP_PRICE", "현재가"),
		ExchangeRate:    getEnv("NOTION_PROP_EXCHANGE_RATE", "환율"),
		AutoBuy:         getEnv("NOTION_PROP_AUTOBUY", "자동매수"),
		Frequency:       getEnv("NOTION_PROP_FREQUENCY", "매수주기"),
		LastBuyDate:     getEnv("NOTION_PROP_LAST_BUY_DATE", "마지막매수일"),
		FixedAmount:     getEnv("NOTION_PROP_FIXED_AMOUNT", "고정금액"),
		FixedQuantity:   getEnv("NOTION_PROP_FIXED_QUANTITY", "고정수량"),
		CurrentQuantity: getEnv("NOTION_PROP_CURRENT_QUANTITY", "보유수량"),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal gets an environment variable as a decimal with a default value
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
