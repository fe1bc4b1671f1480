// Command translate runs the page pipeline on local images without a queue
// or database. Rendered pages and their region lists are written under -out.
//
//	translate -in ./chapter01 -out ./out -src ja -dst en -parallel 4
//	translate -in p01.png -out ./out -dst en -edited ./out/p01/regions.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/disintegration/imaging"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/pagetranslate-worker/internal/app"
	"github.com/adverant/nexus/pagetranslate-worker/internal/config"
	"github.com/adverant/nexus/pagetranslate-worker/internal/errors"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
	"github.com/adverant/nexus/pagetranslate-worker/internal/processor"
	"github.com/adverant/nexus/pagetranslate-worker/internal/storage"
)

const regionsFile = "regions.json"

type options struct {
	in, out  string
	src, dst string
	parallel int
	format   string
	edited   string
	cache    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "page image or directory of page images")
	flag.StringVar(&opts.out, "out", "out", "output directory")
	flag.StringVar(&opts.src, "src", "auto", "source language tag")
	flag.StringVar(&opts.dst, "dst", "en", "target language tag")
	flag.IntVar(&opts.parallel, "parallel", 2, "pages processed at once")
	flag.StringVar(&opts.format, "format", "", "output format (png, jpg); default png")
	flag.StringVar(&opts.edited, "edited", "", "regions.json with edited translations to render onto -in (single page)")
	flag.BoolVar(&opts.cache, "cache", false, "cache translations in Redis at REDIS_URL")
	flag.Parse()

	logger := logging.NewLogger("Translate")
	if err := run(opts, logger); err != nil {
		logger.Error("Translation failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, logger *logging.Logger) error {
	if opts.in == "" {
		return fmt.Errorf("-in is required")
	}
	if opts.parallel < 1 {
		opts.parallel = 1
	}

	_ = godotenv.Load(".env")
	cfg := config.LoadFromEnv()
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Warn("Invalid logging configuration, keeping defaults", "error", err)
	}
	if cfg.TranslatorAPIKey == "" && opts.edited == "" {
		return fmt.Errorf("TRANSLATOR_API_KEY is required")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return err
	}

	files, err := inputFiles(opts.in)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no page images found in %s", opts.in)
	}

	out, err := storage.NewFileStore(opts.out)
	if err != nil {
		return err
	}
	store := storage.NewMemoryStore()

	pipeline, err := app.Build(cfg, store, out, opts.cache)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.edited != "" {
		if len(files) != 1 {
			return fmt.Errorf("-edited needs exactly one input page, got %d", len(files))
		}
		return renderEdited(ctx, pipeline.Processor, out, opts, files[0], logger)
	}

	ids := pageIDs(files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallel)
	failed := make([]bool, len(files))
	for i, file := range files {
		g.Go(func() error {
			req := request(opts, file, ids[i])
			res, err := pipeline.Processor.ProcessPage(gctx, req)
			if err != nil {
				// one bad page does not stop the batch
				logger.Warn(fmt.Sprintf("[Page %s] Failed", req.PageID),
					"code", errors.CodeOf(err), "reason", errors.Reason(err))
				failed[i] = true
				return nil
			}
			if err := writeRegions(out, res.Page); err != nil {
				return err
			}
			logger.Info(fmt.Sprintf("[Page %s] Translated", req.PageID),
				"output", res.OutputLocation, "regions", res.RegionsRendered,
				"placeholders", res.Placeholders, "ms", res.ProcessingTimeMs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var n int
	for _, f := range failed {
		if f {
			n++
		}
	}
	logger.Info("Batch finished", "pages", len(files), "failed", n)
	if n == len(files) {
		return fmt.Errorf("all %d pages failed", n)
	}
	return nil
}

func renderEdited(ctx context.Context, proc *processor.Processor, out *storage.FileStore, opts options, file string, logger *logging.Logger) error {
	data, err := os.ReadFile(opts.edited)
	if err != nil {
		return err
	}
	var regions []page.TextRegion
	if err := json.Unmarshal(data, &regions); err != nil {
		return fmt.Errorf("parse %s: %w", opts.edited, err)
	}

	req := request(opts, file, pageIDs([]string{file})[0])
	res, err := proc.RenderEdited(ctx, req, regions)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("[Page %s] Rendered edited translations", req.PageID),
		"output", res.OutputLocation, "regions", res.RegionsRendered)
	return writeRegions(out, res.Page)
}

func request(opts options, file, pageID string) *processor.PageRequest {
	return &processor.PageRequest{
		PageID:         pageID,
		SourceLanguage: opts.src,
		TargetLanguage: opts.dst,
		Filename:       filepath.Base(file),
		ImagePath:      file,
		OutputFormat:   opts.format,
	}
}

// writeRegions stores the translated regions next to the rendered page so
// they can be edited and fed back with -edited.
func writeRegions(out *storage.FileStore, pg *page.Page) error {
	data, err := json.MarshalIndent(pg.TranslatedRegions, "", "  ")
	if err != nil {
		return err
	}
	return out.Save(filepath.Join(pg.ID, regionsFile), bytes.NewReader(data))
}

// pageIDs names each page after its file stem. Stems shared by several
// files (p01.png, p01.jpg) keep the extension so no two pages share an id.
func pageIDs(files []string) []string {
	stems := make([]string, len(files))
	seen := make(map[string]int, len(files))
	for i, f := range files {
		base := filepath.Base(f)
		stems[i] = strings.TrimSuffix(base, filepath.Ext(base))
		seen[stems[i]]++
	}
	ids := make([]string, len(files))
	taken := make(map[string]bool, len(files))
	for i, f := range files {
		id := stems[i]
		if seen[id] > 1 {
			id += "-" + strings.TrimPrefix(filepath.Ext(f), ".")
		}
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("%s-%d", stems[i], n)
		}
		taken[id] = true
		ids[i] = id
	}
	return ids
}

func inputFiles(in string) ([]string, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{in}, nil
	}
	entries, err := os.ReadDir(in)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := imaging.FormatFromFilename(e.Name()); err == nil {
			files = append(files, filepath.Join(in, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
