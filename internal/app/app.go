// Package app assembles the page pipeline from configuration. The worker
// and the local CLI share it so both run the same stack.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/pagetranslate-worker/internal/config"
	"github.com/adverant/nexus/pagetranslate-worker/internal/detector/tesseract"
	"github.com/adverant/nexus/pagetranslate-worker/internal/eraser"
	"github.com/adverant/nexus/pagetranslate-worker/internal/eraser/opencv"
	"github.com/adverant/nexus/pagetranslate-worker/internal/fonts"
	"github.com/adverant/nexus/pagetranslate-worker/internal/imageio"
	"github.com/adverant/nexus/pagetranslate-worker/internal/layout"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/processor"
	"github.com/adverant/nexus/pagetranslate-worker/internal/render"
	"github.com/adverant/nexus/pagetranslate-worker/internal/translation"
)

// Pipeline is a ready processor plus whatever must be closed with it.
type Pipeline struct {
	Processor *processor.Processor
	Fonts     *fonts.Cache
	closers   []func() error
}

// Close releases the pipeline's connections.
func (p *Pipeline) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires detector, translator, eraser and renderer from cfg around
// the given store and publisher. cacheRedis enables the translation cache
// on cfg.RedisURL.
func Build(cfg *config.Config, store processor.PageStore, publisher processor.Publisher, cacheRedis bool) (*Pipeline, error) {
	logger := logging.NewLogger("Pipeline")
	p := &Pipeline{}

	p.Fonts = fonts.NewCache(cfg.FontPaths)
	if missing := p.Fonts.Warm(); len(missing) > 0 {
		logger.Warn("Some fonts could not be loaded, using fallback face", "languages", missing)
	}

	var translator translation.Translator = translation.NewOpenAIClient(translation.OpenAIConfig{
		APIKey:            cfg.TranslatorAPIKey,
		BaseURL:           cfg.TranslatorBaseURL,
		Model:             cfg.TranslatorModel,
		Temperature:       cfg.TranslatorTemperature,
		MaxTokens:         cfg.TranslatorMaxTokens,
		RequestsPerSecond: cfg.TranslatorRPS,
	})
	if cacheRedis && cfg.RedisURL != "" {
		client, err := connectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Translation cache disabled", "error", err)
		} else {
			translator = translation.NewCachedTranslator(translator, translation.NewRedisCache(client, cfg.TranslationCacheTTL))
			p.closers = append(p.closers, client.Close)
			logger.Info("Translation cache enabled", "ttl", cfg.TranslationCacheTTL)
		}
	}

	var inpainter eraser.Inpainter
	if cfg.InpaintBackend == "opencv" {
		if opencv.Available {
			inpainter = opencv.New()
		} else {
			logger.Warn("INPAINT_BACKEND=opencv but this build has no OpenCV, using native inpainter")
		}
	}
	er := eraser.New(inpainter, eraser.Options{
		Padding: cfg.Tuning.MaskPadding,
		Radius:  cfg.Tuning.InpaintRadius,
	})

	style, err := render.ParseStyle(cfg.RenderFillColor, cfg.RenderTextColor, cfg.RenderShadowColor, cfg.PlaceholderText)
	if err != nil {
		return nil, fmt.Errorf("invalid render style: %w", err)
	}
	fitOpts := layout.DefaultOptions()
	fitOpts.MinFontSize = cfg.Tuning.MinFontSize
	fitOpts.ShrinkFloor = cfg.Tuning.ShrinkFloorFontSize
	renderer := render.NewRenderer(p.Fonts, layout.NewFitter(p.Fonts, fitOpts), style)

	proc, err := processor.NewProcessor(&processor.ProcessorConfig{
		Detector:           tesseract.New(tesseract.Config{TessdataPrefix: cfg.TessdataPrefix}),
		Translator:         translator,
		Eraser:             er,
		Renderer:           renderer,
		Store:              store,
		Publisher:          publisher,
		Loader:             imageio.NewLoader(cfg.MaxFileSize),
		MinConfidence:      cfg.Tuning.MinDetectionConfidence,
		ProximityThreshold: cfg.Tuning.ProximityThreshold,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Processor = proc
	return p, nil
}

func connectRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
