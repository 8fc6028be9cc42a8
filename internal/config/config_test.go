package config

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/portfolio-sync/internal/errors"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("NOTION_API_KEY", "secret_abc")
	t.Setenv("DATABASE_ID", "db-123")
	t.Setenv("NOTION_BASE_URL", "http://localhost:9999/v1/")
	t.Setenv("FX_FALLBACK_RATE", "1350")
	t.Setenv("SYNC_RECORD_DELAY", "1s")
	t.Setenv("SYNC_DRY_RUN", "true")
	t.Setenv("AUTOBUY_WEEKDAY", "4")
	t.Setenv("NOTION_PROP_PRICE", "Price")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "secret_abc", cfg.Notion.APIKey)
	assert.Equal(t, "db-123", cfg.Notion.DatabaseID)
	assert.Equal(t, "http://localhost:9999/v1", cfg.Notion.BaseURL)
	assert.Equal(t, "2022-06-28", cfg.Notion.Version)
	assert.True(t, cfg.FX.FallbackRate.Equal(decimal.NewFromInt(1350)))
	assert.Equal(t, time.Second, cfg.Sync.RecordDelay)
	assert.True(t, cfg.Sync.DryRun)
	assert.Equal(t, time.Friday, cfg.AutoBuy.Weekday)
	assert.Equal(t, "Price", cfg.Notion.Properties.Price)
	assert.Equal(t, "종목코드", cfg.Notion.Properties.Code)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.FX.FallbackRate.Equal(decimal.NewFromInt(1300)))
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.RecordDelay)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, time.Tuesday, cfg.AutoBuy.Weekday)
	assert.Equal(t, "KRW=X", cfg.FX.Pair)
	assert.Equal(t, "", cfg.Redis.Addr)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone.String())
}

func TestLoadConfig_InvalidWeekday(t *testing.T) {
	t.Setenv("AUTOBUY_WEEKDAY", "someday")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate_MissingSecrets(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		dbID    string
		wantErr bool
	}{
		{name: "both present", apiKey: "k", dbID: "d", wantErr: false},
		{name: "missing api key", apiKey: "", dbID: "d", wantErr: true},
		{name: "missing database id", apiKey: "k", dbID: "", wantErr: true},
		{name: "missing both", apiKey: "", dbID: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Notion: NotionConfig{APIKey: tt.apiKey, DatabaseID: tt.dbID},
				FX:     FXConfig{FallbackRate: decimal.NewFromInt(1300)},
			}
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var catErr *apperrors.CategorizedError
			require.True(t, errors.As(err, &catErr))
			assert.Equal(t, apperrors.CategoryConfig, catErr.Category)
		})
	}
}

func TestValidate_NonPositiveFallbackRate(t *testing.T) {
	cfg := &Config{
		Notion: NotionConfig{APIKey: "k", DatabaseID: "d"},
		FX:     FXConfig{FallbackRate: decimal.Zero},
	}
	assert.Error(t, cfg.Validate())
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "not-a-duration")
	assert.Equal(t, 3*time.Second, getEnvAsDuration("TEST_DURATION", 3*time.Second))

	t.Setenv("TEST_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, getEnvAsDuration("TEST_DURATION", 3*time.Second))
}
