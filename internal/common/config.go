package common

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	FinancialYear string
	Cache         CacheConfig
	Extraction    ExtractionConfig
	LLM           LLMConfig
	Retry         RetryConfig
	Pipeline      PipelineConfig
	LogLevel      string
}

// CacheConfig holds cache/failure-store configuration.
type CacheConfig struct {
	Path string // sqlite database file; empty -> in-memory store
}

// ExtractionConfig holds extraction-chain configuration.
type ExtractionConfig struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	OCRTimeout time.Duration
}

// LLMConfig holds structuring-endpoint configuration.
type LLMConfig struct {
	Endpoint       string // local inference endpoint, OpenAI-compatible chat completions
	Model          string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
	RequestsPerSec float64 // rate bound across workers
}

// RetryConfig parameterizes the shared retry/backoff executor.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // 0..1 fraction of the delay
}

// PipelineConfig holds orchestrator configuration.
type PipelineConfig struct {
	Workers            int
	FileTimeout        time.Duration
	BusinessUsePercent map[string]float64 // per-category override; "" key = default
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		FinancialYear: getEnv("FINANCIAL_YEAR", "2024-2025"),
		Cache: CacheConfig{
			Path: getEnv("CACHE_DB_PATH", "catalog.db"),
		},
		Extraction: ExtractionConfig{
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			OCRTimeout:    getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			Endpoint:       getEnv("LLM_ENDPOINT", "http://127.0.0.1:1234/v1/chat/completions"),
			Model:          getEnv("LLM_MODEL", "local-model"),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 3000),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 2*time.Minute),
			RequestsPerSec: getEnvAsFloat64("LLM_REQUESTS_PER_SEC", 2),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 2*time.Second),
			MaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", 30*time.Second),
			Jitter:      getEnvAsFloat64("RETRY_JITTER", 0.2),
		},
		Pipeline: PipelineConfig{
			Workers:     getEnvAsInt("PIPELINE_WORKERS", 4),
			FileTimeout: getEnvAsDuration("PIPELINE_FILE_TIMEOUT", 5*time.Minute),
			BusinessUsePercent: map[string]float64{
				"": getEnvAsFloat64("BUSINESS_USE_PERCENT", 60),
			},
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if !ValidFinancialYear(c.FinancialYear) {
		return fmt.Errorf("FINANCIAL_YEAR %q is not of the form YYYY-YYYY with consecutive years", c.FinancialYear)
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("LLM_ENDPOINT is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be >= 1")
	}
	return nil
}

// ValidFinancialYear reports whether fy is "YYYY-YYYY" with consecutive years.
func ValidFinancialYear(fy string) bool {
	if len(fy) != 9 || fy[4] != '-' {
		return false
	}
	start, err := strconv.Atoi(fy[:4])
	if err != nil {
		return false
	}
	end, err := strconv.Atoi(fy[5:])
	if err != nil {
		return false
	}
	return end == start+1
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
