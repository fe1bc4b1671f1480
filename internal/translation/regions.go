package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// Outcome summarizes a TranslateRegions call.
type Outcome struct {
	Regions     []page.TextRegion
	Translated  int
	Punctuation int
	Fallbacks   int
	Empty       int
}

// RegionTranslator fills TranslatedText on a page's regions.
type RegionTranslator struct {
	translator Translator
	logger     *logging.Logger
}

// NewRegionTranslator wraps a translator.
func NewRegionTranslator(t Translator) *RegionTranslator {
	return &RegionTranslator{
		translator: t,
		logger:     logging.NewLogger("RegionTranslator"),
	}
}

// TranslateRegions translates every region, returning copies. A failed
// region keeps its source text as the translation so the page still
// renders. A failure wrapping ErrUnavailable aborts the whole call.
func (rt *RegionTranslator) TranslateRegions(ctx context.Context, regions []page.TextRegion, source, target string) (*Outcome, error) {
	out := &Outcome{Regions: page.Clone(regions)}

	for i := range out.Regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r := &out.Regions[i]
		text := strings.TrimSpace(r.SourceText)

		if text == "" {
			r.TranslatedText = ""
			out.Empty++
			continue
		}

		if form, ok := LookupPunctuation(text, target); ok {
			r.TranslatedText = form
			out.Punctuation++
			continue
		}

		translated, err := rt.translator.Translate(ctx, text, source, target)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return nil, fmt.Errorf("translating region %s: %w", r.ID, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			rt.logger.Warn("Translation failed, keeping source text", "region", r.ID, "error", err)
			r.TranslatedText = text
			out.Fallbacks++
			continue
		}

		r.TranslatedText = strings.TrimSpace(translated)
		out.Translated++
	}

	return out, nil
}
