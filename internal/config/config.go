/**
 * Configuration for the page translation worker
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue + translation cache)
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Queue configuration
	QueueBackend string // "redis" (list consumer) or "asynq"
	QueueName    string

	// Translator (OpenAI-compatible chat completion endpoint, e.g. OpenRouter)
	TranslatorAPIKey      string
	TranslatorBaseURL     string
	TranslatorModel       string
	TranslatorTemperature float64
	TranslatorMaxTokens   int
	TranslatorRPS         float64
	TranslationCacheTTL   time.Duration

	// Service URLs
	ArtifactAPIURL string // optional remote artifact storage

	// Worker configuration
	WorkerConcurrency int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds

	// Tesseract configuration
	TessdataPrefix string

	// Output directory for rendered pages when no artifact API is configured
	OutputDir string

	// Pipeline tuning
	Tuning Tuning

	// Fonts keyed by language tag, e.g. "en" -> /usr/share/fonts/DejaVuSans.ttf
	FontPaths map[string]string

	// Rendering
	InpaintBackend    string // "native" or "opencv"
	RenderFillColor   string
	RenderTextColor   string
	RenderShadowColor string
	PlaceholderText   string

	// Logging
	LogLevel  string
	LogFormat string
}

// Tuning holds the empirically chosen pipeline constants. They are kept as
// named values so deployments can override them without code changes.
type Tuning struct {
	ProximityThreshold     int
	MinDetectionConfidence float64
	MaskPadding            int
	InpaintRadius          int
	MinFontSize            float64
	ShrinkFloorFontSize    float64
}

// DefaultTuning returns the stock pipeline constants.
func DefaultTuning() Tuning {
	return Tuning{
		ProximityThreshold:     50,
		MinDetectionConfidence: 0.3,
		MaskPadding:            5,
		InpaintRadius:          10,
		MinFontSize:            12,
		ShrinkFloorFontSize:    10,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := LoadFromEnv()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv reads the environment without validating it. Local tools
// that need only part of the stack validate what they use.
func LoadFromEnv() *Config {
	def := DefaultTuning()
	cfg := &Config{
		RedisURL:              getEnvOrDefault("REDIS_URL", "redis://nexus-redis:6379"),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		QueueBackend:          getEnvOrDefault("QUEUE_BACKEND", "redis"),
		QueueName:             getEnvOrDefault("QUEUE_NAME", "pagetranslate:jobs"),
		TranslatorAPIKey:      getEnvOrDefault("TRANSLATOR_API_KEY", ""),
		TranslatorBaseURL:     getEnvOrDefault("TRANSLATOR_BASE_URL", "https://openrouter.ai/api/v1"),
		TranslatorModel:       getEnvOrDefault("TRANSLATOR_MODEL", "openai/gpt-4o-mini"),
		TranslatorTemperature: getEnvAsFloatOrDefault("TRANSLATOR_TEMPERATURE", 0.3),
		TranslatorMaxTokens:   getEnvAsIntOrDefault("TRANSLATOR_MAX_TOKENS", 512),
		TranslatorRPS:         getEnvAsFloatOrDefault("TRANSLATOR_RPS", 2),
		TranslationCacheTTL:   time.Duration(getEnvAsIntOrDefault("TRANSLATION_CACHE_TTL", 86400)) * time.Second,
		ArtifactAPIURL:        getEnvOrDefault("ARTIFACT_API_URL", ""),
		WorkerConcurrency:     getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxFileSize:           getEnvAsInt64OrDefault("MAX_FILE_SIZE", 52428800), // 50MB
		ProcessingTimeout:     getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		TessdataPrefix:        getEnvOrDefault("TESSDATA_PREFIX", ""),
		OutputDir:             getEnvOrDefault("OUTPUT_DIR", "/tmp/pagetranslate"),
		Tuning: Tuning{
			ProximityThreshold:     getEnvAsIntOrDefault("PROXIMITY_THRESHOLD", def.ProximityThreshold),
			MinDetectionConfidence: getEnvAsFloatOrDefault("MIN_DETECTION_CONFIDENCE", def.MinDetectionConfidence),
			MaskPadding:            getEnvAsIntOrDefault("MASK_PADDING", def.MaskPadding),
			InpaintRadius:          getEnvAsIntOrDefault("INPAINT_RADIUS", def.InpaintRadius),
			MinFontSize:            getEnvAsFloatOrDefault("MIN_FONT_SIZE", def.MinFontSize),
			ShrinkFloorFontSize:    getEnvAsFloatOrDefault("SHRINK_FLOOR_FONT_SIZE", def.ShrinkFloorFontSize),
		},
		FontPaths:         parseFontPaths(os.Getenv("FONTS")),
		InpaintBackend:    getEnvOrDefault("INPAINT_BACKEND", "native"),
		RenderFillColor:   getEnvOrDefault("RENDER_FILL_COLOR", "#ffffff"),
		RenderTextColor:   getEnvOrDefault("RENDER_TEXT_COLOR", "#000000"),
		RenderShadowColor: getEnvOrDefault("RENDER_SHADOW_COLOR", "#c8c8c8"),
		PlaceholderText:   getEnvOrDefault("PLACEHOLDER_TEXT", "[...]"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "text"),
	}
	return cfg
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.TranslatorAPIKey == "" {
		return fmt.Errorf("TRANSLATOR_API_KEY is required")
	}

	if c.QueueBackend != "redis" && c.QueueBackend != "asynq" {
		return fmt.Errorf("QUEUE_BACKEND must be redis or asynq, got %q", c.QueueBackend)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.InpaintBackend != "native" && c.InpaintBackend != "opencv" {
		return fmt.Errorf("INPAINT_BACKEND must be native or opencv, got %q", c.InpaintBackend)
	}

	if c.TranslatorRPS <= 0 {
		return fmt.Errorf("TRANSLATOR_RPS must be positive, got %v", c.TranslatorRPS)
	}

	return c.Tuning.Validate()
}

// Validate range-checks the pipeline constants.
func (t Tuning) Validate() error {
	if t.ProximityThreshold < 0 {
		return fmt.Errorf("PROXIMITY_THRESHOLD must be >= 0, got %d", t.ProximityThreshold)
	}
	if t.MinDetectionConfidence < 0 || t.MinDetectionConfidence >= 1 {
		return fmt.Errorf("MIN_DETECTION_CONFIDENCE must be in [0,1), got %v", t.MinDetectionConfidence)
	}
	if t.MaskPadding < 0 || t.MaskPadding > 100 {
		return fmt.Errorf("MASK_PADDING must be between 0 and 100, got %d", t.MaskPadding)
	}
	if t.InpaintRadius < 1 || t.InpaintRadius > 100 {
		return fmt.Errorf("INPAINT_RADIUS must be between 1 and 100, got %d", t.InpaintRadius)
	}
	if t.ShrinkFloorFontSize <= 0 || t.MinFontSize < t.ShrinkFloorFontSize {
		return fmt.Errorf("font sizes must satisfy 0 < SHRINK_FLOOR_FONT_SIZE <= MIN_FONT_SIZE, got %v/%v",
			t.ShrinkFloorFontSize, t.MinFontSize)
	}
	return nil
}

// ProcessingTimeoutDuration returns the per-page timeout.
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// parseFontPaths parses "en=/a.ttf,es=/b.ttf" into a map.
func parseFontPaths(raw string) map[string]string {
	paths := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		lang, path, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(lang) == "" || strings.TrimSpace(path) == "" {
			continue
		}
		paths[strings.ToLower(strings.TrimSpace(lang))] = strings.TrimSpace(path)
	}
	return paths
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
