/**
 * Page Processor for the page translation worker
 *
 * Orchestrates one page through the pipeline:
 * - load and decode the page bitmap (buffer, local path or URL)
 * - detect text, drop noise, group fragments into speech units
 * - translate each unit (punctuation table first, translator second)
 * - erase the original glyphs and render the translation in place
 * - hand the result to a publisher and record the page status
 *
 * Status only ever moves pending -> processing -> completed|failed, and
 * every failure is recorded with its PageError code and reason.
 */

package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/pagetranslate-worker/internal/detector"
	"github.com/adverant/nexus/pagetranslate-worker/internal/eraser"
	"github.com/adverant/nexus/pagetranslate-worker/internal/errors"
	"github.com/adverant/nexus/pagetranslate-worker/internal/grouping"
	"github.com/adverant/nexus/pagetranslate-worker/internal/imageio"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
	"github.com/adverant/nexus/pagetranslate-worker/internal/render"
	"github.com/adverant/nexus/pagetranslate-worker/internal/storage"
	"github.com/adverant/nexus/pagetranslate-worker/internal/translation"
)

// PageProcessorInterface is what the queue consumers drive.
type PageProcessorInterface interface {
	ProcessPage(ctx context.Context, req *PageRequest) (*PageResult, error)
}

// PageStore records page status and region lists.
type PageStore interface {
	UpdatePageStatus(ctx context.Context, update *storage.PageUpdate) error
	SaveRegions(ctx context.Context, pageID string, detected, translated []page.TextRegion) error
}

// Publisher hands the rendered page to durable storage.
type Publisher interface {
	Publish(ctx context.Context, pageID, name string, img image.Image, format imaging.Format) (string, error)
}

// ProcessorConfig holds processor dependencies
type ProcessorConfig struct {
	Detector   detector.Detector
	Translator translation.Translator
	Eraser     *eraser.Eraser
	Renderer   *render.Renderer
	Store      PageStore
	Publisher  Publisher
	Loader     *imageio.Loader

	MinConfidence      float64
	ProximityThreshold int
	OutputFormat       string // default output format when the request names none
}

// PageRequest represents one page to translate
type PageRequest struct {
	PageID         string
	SourceLanguage string
	TargetLanguage string
	Filename       string
	ImageData      []byte
	ImagePath      string
	ImageURL       string
	OutputFormat   string // "png", "jpg", ... ; empty follows the config
}

// PageResult represents the processing result
type PageResult struct {
	Page             *page.Page
	Image            image.Image
	OutputLocation   string
	RegionsDetected  int
	RegionsGrouped   int
	RegionsRendered  int
	Placeholders     int
	Confidence       float64 // mean detection confidence, 0..1
	EraseDegraded    bool
	ProcessingTimeMs int64
}

// Processor runs pages through the pipeline. It holds no per-page state,
// so one Processor serves any number of concurrent pages.
type Processor struct {
	config     *ProcessorConfig
	detector   detector.Detector
	translator *translation.RegionTranslator
	eraser     *eraser.Eraser
	renderer   *render.Renderer
	store      PageStore
	publisher  Publisher
	loader     *imageio.Loader
	logger     *logging.Logger
}

// NewProcessor creates a new page processor
func NewProcessor(cfg *ProcessorConfig) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("page store is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	er := cfg.Eraser
	if er == nil {
		er = eraser.New(nil, eraser.DefaultOptions())
	}
	loader := cfg.Loader
	if loader == nil {
		loader = imageio.NewLoader(0)
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = detector.DefaultMinConfidence
	}
	if cfg.ProximityThreshold <= 0 {
		cfg.ProximityThreshold = grouping.DefaultProximityThreshold
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "png"
	}

	return &Processor{
		config:     cfg,
		detector:   cfg.Detector,
		translator: translation.NewRegionTranslator(cfg.Translator),
		eraser:     er,
		renderer:   cfg.Renderer,
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		loader:     loader,
		logger:     logging.NewLogger("PageProcessor"),
	}, nil
}

// ProcessPage translates a page from scratch.
func (p *Processor) ProcessPage(ctx context.Context, req *PageRequest) (*PageResult, error) {
	return p.execute(ctx, req, "translation pipeline", func(run *pageRun) error {
		if err := run.load(ctx); err != nil {
			return err
		}
		if err := run.detect(ctx); err != nil {
			return err
		}
		if err := run.translate(ctx); err != nil {
			return err
		}
		return run.finish(ctx, run.detected, run.translated)
	})
}

// Retranslate re-runs grouping, translation, erasure and rendering over
// previously detected regions. Detection is skipped.
func (p *Processor) Retranslate(ctx context.Context, req *PageRequest, detected []page.TextRegion) (*PageResult, error) {
	return p.execute(ctx, req, "retranslation", func(run *pageRun) error {
		if err := run.load(ctx); err != nil {
			return err
		}
		regions := page.Clone(detected)
		page.SortByTop(regions)
		if err := run.accept(ctx, regions, len(detected)); err != nil {
			return err
		}
		if err := run.translate(ctx); err != nil {
			return err
		}
		return run.finish(ctx, run.detected, run.translated)
	})
}

// RenderEdited re-erases and re-renders a page from caller-edited
// translated regions. Neither detection nor translation runs.
func (p *Processor) RenderEdited(ctx context.Context, req *PageRequest, translated []page.TextRegion) (*PageResult, error) {
	return p.execute(ctx, req, "re-render", func(run *pageRun) error {
		if err := run.load(ctx); err != nil {
			return err
		}
		if len(translated) == 0 {
			return errors.NewNoContentError(run.page.ID, 0)
		}
		if !anyGeometry(translated) {
			return errors.NewInputError(run.page.ID, "No region has usable geometry", nil).WithStage("render")
		}
		run.translated = page.Clone(translated)
		run.page.TranslatedRegions = run.translated
		run.result.RegionsGrouped = len(translated)
		run.result.Confidence = meanConfidence(translated)
		if err := run.save(ctx, "persist-translated", nil, run.translated); err != nil {
			return err
		}
		return run.finish(ctx, run.translated, run.translated)
	})
}

// pageRun carries one page through the stages.
type pageRun struct {
	p          *Processor
	req        *PageRequest
	page       *page.Page
	result     *PageResult
	data       []byte
	bitmap     image.Image
	detected   []page.TextRegion
	grouped    []page.TextRegion
	translated []page.TextRegion
	step       int
}

func (run *pageRun) logStep(msg string, keysAndValues ...interface{}) {
	run.step++
	run.p.logger.Info(fmt.Sprintf("[Page %s] Step %d: %s", run.page.ID, run.step, msg), keysAndValues...)
}

func (p *Processor) execute(ctx context.Context, req *PageRequest, what string, body func(*pageRun) error) (*PageResult, error) {
	if req == nil {
		return nil, fmt.Errorf("page request is required")
	}
	start := time.Now()
	pg := page.New(req.PageID, req.SourceLanguage, req.TargetLanguage)
	run := &pageRun{p: p, req: req, page: pg, result: &PageResult{Page: pg}}

	p.logger.Info(fmt.Sprintf("[Page %s] Starting %s", pg.ID, what),
		"source", req.SourceLanguage, "target", req.TargetLanguage, "filename", req.Filename)

	if err := pg.Transition(page.StatusProcessing); err != nil {
		return nil, err
	}
	p.updateStatus(ctx, &storage.PageUpdate{
		PageID:         pg.ID,
		Status:         string(pg.Status),
		SourceLanguage: pg.SourceLanguage,
		TargetLanguage: pg.TargetLanguage,
		Filename:       req.Filename,
	})

	err := body(run)
	run.result.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		return run.result, p.fail(ctx, run, err, start)
	}

	if err := pg.Transition(page.StatusCompleted); err != nil {
		return run.result, err
	}
	p.updateStatus(ctx, &storage.PageUpdate{
		PageID:           pg.ID,
		Status:           string(pg.Status),
		RegionCount:      run.result.RegionsGrouped,
		Confidence:       run.result.Confidence,
		ProcessingTimeMs: run.result.ProcessingTimeMs,
		OutputLocation:   run.result.OutputLocation,
		Metadata: map[string]interface{}{
			"regionsDetected": run.result.RegionsDetected,
			"regionsRendered": run.result.RegionsRendered,
			"placeholders":    run.result.Placeholders,
			"eraseDegraded":   run.result.EraseDegraded,
		},
	})

	p.logger.Info(fmt.Sprintf("[Page %s] Completed in %dms", pg.ID, run.result.ProcessingTimeMs),
		"regions", run.result.RegionsGrouped, "output", run.result.OutputLocation)
	return run.result, nil
}

// fail moves the page to failed and records why. The record is written
// even when ctx is already done.
func (p *Processor) fail(ctx context.Context, run *pageRun, err error, start time.Time) error {
	if stderrors.Is(err, context.DeadlineExceeded) && errors.CodeOf(err) == "" {
		err = errors.NewProcessingTimeoutError(run.page.ID, time.Since(start), err)
	}

	reason := errors.Reason(err)
	if ferr := run.page.Fail(reason); ferr != nil {
		p.logger.Warn(fmt.Sprintf("[Page %s] Could not mark page failed", run.page.ID), "error", ferr)
	}

	update := &storage.PageUpdate{
		PageID:           run.page.ID,
		Status:           string(page.StatusFailed),
		ErrorCode:        string(errors.CodeOf(err)),
		ErrorMessage:     reason,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	var pe *errors.PageError
	if stderrors.As(err, &pe) {
		update.Metadata = map[string]interface{}{"error": pe.ToMap()}
	}
	p.updateStatus(context.WithoutCancel(ctx), update)

	p.logger.Error(fmt.Sprintf("[Page %s] Failed", run.page.ID), "code", update.ErrorCode, "error", err)
	return err
}

func (p *Processor) updateStatus(ctx context.Context, update *storage.PageUpdate) {
	if err := p.store.UpdatePageStatus(ctx, update); err != nil {
		p.logger.Warn(fmt.Sprintf("[Page %s] Failed to record status %s", update.PageID, update.Status), "error", err)
	}
}

func (run *pageRun) load(ctx context.Context) error {
	src := imageio.Source{Buffer: run.req.ImageData, Path: run.req.ImagePath, URL: run.req.ImageURL}
	run.logStep("Loading page image", "bytes", len(src.Buffer), "path", src.Path, "url", src.URL)

	data, err := run.p.loader.Load(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.NewInputError(run.page.ID, "Could not read the page image", err)
	}

	img, mime, err := imageio.Decode(data)
	if err != nil {
		if stderrors.Is(err, imageio.ErrUnsupportedFormat) {
			return errors.NewInputError(run.page.ID, fmt.Sprintf("Unsupported image format: %s", mime), err)
		}
		return errors.NewInputError(run.page.ID, "Could not decode the page image", err)
	}
	run.data = data
	run.bitmap = img
	run.p.logger.Debug(fmt.Sprintf("[Page %s] Decoded %s", run.page.ID, mime),
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return nil
}

func (run *pageRun) detect(ctx context.Context) error {
	run.logStep("Detecting text", "language", run.page.SourceLanguage)

	dets, err := run.p.detector.Detect(ctx, run.data, run.page.SourceLanguage)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewCollaboratorError(run.page.ID, "detector", err)
	}

	conv := detector.ToRegions(dets, run.bitmap.Bounds(), detector.Options{
		MinConfidence: run.p.config.MinConfidence,
		Language:      run.page.SourceLanguage,
	})
	run.p.logger.Info(fmt.Sprintf("[Page %s] Detection finished", run.page.ID),
		"raw", conv.Raw, "kept", len(conv.Regions), "lowScore", conv.LowScore, "emptyText", conv.EmptyText)

	return run.accept(ctx, conv.Regions, conv.Raw)
}

// accept checks the detected regions, groups them and persists the
// detected list.
func (run *pageRun) accept(ctx context.Context, regions []page.TextRegion, raw int) error {
	if len(regions) == 0 {
		return errors.NewNoContentError(run.page.ID, raw)
	}
	if !anyGeometry(regions) {
		return errors.NewInputError(run.page.ID, "No region has usable geometry", nil).WithStage("detection")
	}

	run.detected = regions
	run.page.DetectedRegions = regions
	run.result.RegionsDetected = len(regions)
	run.result.Confidence = meanConfidence(regions)

	run.logStep("Grouping regions", "regions", len(regions))
	run.grouped = grouping.NewGrouper(grouping.Options{
		ProximityThreshold: run.p.config.ProximityThreshold,
		Language:           run.page.SourceLanguage,
	}).Group(regions)
	run.result.RegionsGrouped = len(run.grouped)

	return run.save(ctx, "persist-detected", run.detected, nil)
}

func (run *pageRun) translate(ctx context.Context) error {
	run.logStep("Translating regions", "regions", len(run.grouped), "target", run.page.TargetLanguage)

	outcome, err := run.p.translator.TranslateRegions(ctx, run.grouped, run.page.SourceLanguage, run.page.TargetLanguage)
	if err != nil {
		if stderrors.Is(err, translation.ErrUnavailable) {
			return errors.NewCollaboratorError(run.page.ID, "translator", err)
		}
		return err
	}
	run.p.logger.Info(fmt.Sprintf("[Page %s] Translation finished", run.page.ID),
		"translated", outcome.Translated, "punctuation", outcome.Punctuation,
		"fallbacks", outcome.Fallbacks, "empty", outcome.Empty)

	run.translated = outcome.Regions
	run.page.TranslatedRegions = outcome.Regions
	return run.save(ctx, "persist-translated", nil, run.translated)
}

// finish erases eraseRegions, renders renderRegions and publishes.
func (run *pageRun) finish(ctx context.Context, eraseRegions, renderRegions []page.TextRegion) error {
	run.logStep("Erasing original text", "regions", len(eraseRegions))
	erased, err := run.p.eraser.Erase(run.bitmap, eraseRegions)
	if err != nil {
		return errors.NewInputError(run.page.ID, "Could not erase the page image", err).WithStage("erase")
	}
	run.result.EraseDegraded = erased.Degraded
	if erased.Degraded {
		run.p.logger.Warn(fmt.Sprintf("[Page %s] Erasure degraded, rendering over original pixels", run.page.ID))
	}

	run.logStep("Rendering translation", "regions", len(renderRegions))
	out, report := run.p.renderer.Render(erased.Image, renderRegions, run.page.TargetLanguage)
	run.result.Image = out
	run.result.RegionsRendered = report.Rendered
	run.result.Placeholders = report.Placeholders

	if err := ctx.Err(); err != nil {
		return err
	}

	format := imageio.Format(run.p.config.OutputFormat)
	if run.req.OutputFormat != "" {
		format = imageio.Format(run.req.OutputFormat)
	}
	name := imageio.OutputName(run.req.Filename, format)
	run.logStep("Publishing rendered page", "name", name)
	location, err := run.p.publisher.Publish(ctx, run.page.ID, name, out, format)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewStorageFailedError(run.page.ID, "publish", err)
	}
	run.result.OutputLocation = location
	return nil
}

func (run *pageRun) save(ctx context.Context, stage string, detected, translated []page.TextRegion) error {
	if err := run.p.store.SaveRegions(ctx, run.page.ID, detected, translated); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewStorageFailedError(run.page.ID, stage, err)
	}
	return nil
}

func anyGeometry(regions []page.TextRegion) bool {
	for _, r := range regions {
		if r.Box.Valid() {
			return true
		}
	}
	return false
}

// meanConfidence converts region confidence (0..100) back to 0..1.
func meanConfidence(regions []page.TextRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	var sum float64
	for _, r := range regions {
		sum += r.Confidence
	}
	return sum / float64(len(regions)) / 100
}
