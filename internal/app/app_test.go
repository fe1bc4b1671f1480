package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/pagetranslate-worker/internal/config"
	"github.com/adverant/nexus/pagetranslate-worker/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		TranslatorAPIKey:  "test",
		TranslatorModel:   "test-model",
		TranslatorRPS:     1,
		MaxFileSize:       1 << 20,
		InpaintBackend:    "opencv",
		Tuning:            config.DefaultTuning(),
		RenderFillColor:   "#ffffff",
		RenderTextColor:   "#000000",
		RenderShadowColor: "#c8c8c8",
		PlaceholderText:   "[...]",
	}
}

func TestBuildWiresProcessor(t *testing.T) {
	out, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	p, err := Build(testConfig(), storage.NewMemoryStore(), out, false)
	require.NoError(t, err)
	assert.NotNil(t, p.Processor)
	assert.NotNil(t, p.Fonts)
	assert.NoError(t, p.Close())
}

func TestBuildRejectsBadStyle(t *testing.T) {
	cfg := testConfig()
	cfg.RenderFillColor = "not-a-color"
	out, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = Build(cfg, storage.NewMemoryStore(), out, false)
	assert.Error(t, err)
}
