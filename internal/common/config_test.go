package common

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidFinancialYear(t *testing.T) {
	valid := []string{"2024-2025", "1999-2000", "2030-2031"}
	for _, fy := range valid {
		assert.True(t, ValidFinancialYear(fy), fy)
	}

	invalid := []string{"", "2024", "2024-2024", "2024-2026", "2025-2024", "24-25", "2024/2025", "abcd-efgh"}
	for _, fy := range invalid {
		assert.False(t, ValidFinancialYear(fy), fy)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadConfig()
		assert.Equal(t, "2024-2025", cfg.FinancialYear)
		assert.Equal(t, 3, cfg.Retry.MaxAttempts)
		assert.Equal(t, 4, cfg.Pipeline.Workers)
		assert.Equal(t, 60.0, cfg.Pipeline.BusinessUsePercent[""])
		require.NoError(t, cfg.Validate())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("FINANCIAL_YEAR", "2023-2024")
		t.Setenv("PIPELINE_WORKERS", "8")
		t.Setenv("OCR_TIMEOUT", "30s")
		t.Setenv("BUSINESS_USE_PERCENT", "65.5")

		cfg := LoadConfig()
		assert.Equal(t, "2023-2024", cfg.FinancialYear)
		assert.Equal(t, 8, cfg.Pipeline.Workers)
		assert.Equal(t, 30*time.Second, cfg.Extraction.OCRTimeout)
		assert.Equal(t, 65.5, cfg.Pipeline.BusinessUsePercent[""])
	})

	t.Run("validation rejects bad values", func(t *testing.T) {
		cfg := LoadConfig()
		cfg.FinancialYear = "2024"
		assert.Error(t, cfg.Validate())

		cfg = LoadConfig()
		cfg.LLM.Endpoint = ""
		assert.Error(t, cfg.Validate())

		cfg = LoadConfig()
		cfg.Pipeline.Workers = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("anything else"))
}
