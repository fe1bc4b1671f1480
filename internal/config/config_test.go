package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pages")
	t.Setenv("TRANSLATOR_API_KEY", "test-key")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultTuning(), cfg.Tuning)
	assert.Equal(t, 50, cfg.Tuning.ProximityThreshold)
	assert.Equal(t, 0.3, cfg.Tuning.MinDetectionConfidence)
	assert.Equal(t, 5, cfg.Tuning.MaskPadding)
	assert.Equal(t, 10, cfg.Tuning.InpaintRadius)
	assert.Equal(t, "redis", cfg.QueueBackend)
	assert.Equal(t, "native", cfg.InpaintBackend)
	assert.Empty(t, cfg.FontPaths)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PROXIMITY_THRESHOLD", "80")
	t.Setenv("MIN_DETECTION_CONFIDENCE", "0.5")
	t.Setenv("FONTS", "en=/fonts/a.ttf, ES=/fonts/b.ttf,broken,=x")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Tuning.ProximityThreshold)
	assert.Equal(t, 0.5, cfg.Tuning.MinDetectionConfidence)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, map[string]string{"en": "/fonts/a.ttf", "es": "/fonts/b.ttf"}, cfg.FontPaths)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing translator key", func(c *Config) { c.TranslatorAPIKey = "" }, "TRANSLATOR_API_KEY"},
		{"bad backend", func(c *Config) { c.QueueBackend = "kafka" }, "QUEUE_BACKEND"},
		{"bad concurrency", func(c *Config) { c.WorkerConcurrency = 0 }, "WORKER_CONCURRENCY"},
		{"bad inpaint backend", func(c *Config) { c.InpaintBackend = "gpu" }, "INPAINT_BACKEND"},
		{"bad radius", func(c *Config) { c.Tuning.InpaintRadius = 0 }, "INPAINT_RADIUS"},
		{"bad font floor", func(c *Config) { c.Tuning.ShrinkFloorFontSize = 20 }, "SHRINK_FLOOR_FONT_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				RedisURL:          "redis://localhost:6379",
				DatabaseURL:       "postgres://localhost/pages",
				TranslatorAPIKey:  "k",
				QueueBackend:      "asynq",
				WorkerConcurrency: 2,
				MaxFileSize:       4096,
				InpaintBackend:    "opencv",
				TranslatorRPS:     1,
				Tuning:            DefaultTuning(),
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
