package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/pagetranslate-worker/internal/detector"
	"github.com/adverant/nexus/pagetranslate-worker/internal/errors"
	"github.com/adverant/nexus/pagetranslate-worker/internal/fonts"
	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
	"github.com/adverant/nexus/pagetranslate-worker/internal/layout"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
	"github.com/adverant/nexus/pagetranslate-worker/internal/render"
	"github.com/adverant/nexus/pagetranslate-worker/internal/storage"
	"github.com/adverant/nexus/pagetranslate-worker/internal/translation"
)

type fakeDetector struct {
	mu    sync.Mutex
	dets  []detector.Detection
	err   error
	block bool
	calls int
}

func (f *fakeDetector) Detect(ctx context.Context, data []byte, language string) ([]detector.Detection, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.dets, f.err
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	names []string
	imgs  []image.Image
}

func (f *fakePublisher) Publish(ctx context.Context, pageID, name string, img image.Image, format imaging.Format) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	f.imgs = append(f.imgs, img)
	return "mem://" + pageID + "/" + name, nil
}

func rect(x, y, w, h int) []image.Point {
	return []image.Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
}

func pagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 240, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 240; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

// Two fragments of one sentence close together, one separate shout far
// below, and one noise hit.
func speechDetections() []detector.Detection {
	return []detector.Detection{
		{Polygon: rect(20, 20, 150, 24), Text: "I don't know,", Confidence: 0.9},
		{Polygon: rect(20, 50, 150, 24), Text: "what to do.", Confidence: 0.8},
		{Polygon: rect(30, 180, 120, 30), Text: "HEY!", Confidence: 0.95},
		{Polygon: rect(200, 200, 10, 10), Text: "~", Confidence: 0.2},
	}
}

func prefixTranslator(calls *int) translation.Translator {
	return translation.Func(func(ctx context.Context, text, src, tgt string) (string, error) {
		*calls++
		return "[" + tgt + "] " + text, nil
	})
}

type harness struct {
	proc      *Processor
	det       *fakeDetector
	store     *storage.MemoryStore
	publisher *fakePublisher
}

func newHarness(t *testing.T, det *fakeDetector, tr translation.Translator) *harness {
	t.Helper()
	cache := fonts.NewCache(nil)
	store := storage.NewMemoryStore()
	pub := &fakePublisher{}
	proc, err := NewProcessor(&ProcessorConfig{
		Detector:   det,
		Translator: tr,
		Renderer:   render.NewRenderer(cache, layout.NewFitter(cache, layout.DefaultOptions()), render.DefaultStyle()),
		Store:      store,
		Publisher:  pub,
	})
	require.NoError(t, err)
	return &harness{proc: proc, det: det, store: store, publisher: pub}
}

func request(t *testing.T, id string) *PageRequest {
	return &PageRequest{
		PageID:         id,
		SourceLanguage: "en",
		TargetLanguage: "es",
		Filename:       "chapter1/p01.png",
		ImageData:      pagePNG(t),
	}
}

func TestNewProcessorRequiresCollaborators(t *testing.T) {
	_, err := NewProcessor(nil)
	assert.Error(t, err)
	_, err = NewProcessor(&ProcessorConfig{Detector: &fakeDetector{}})
	assert.ErrorContains(t, err, "translator is required")
}

func TestProcessPageHappyPath(t *testing.T) {
	calls := 0
	h := newHarness(t, &fakeDetector{dets: speechDetections()}, prefixTranslator(&calls))

	res, err := h.proc.ProcessPage(context.Background(), request(t, "page-1"))
	require.NoError(t, err)

	assert.Equal(t, page.StatusCompleted, res.Page.Status)
	assert.Equal(t, 3, res.RegionsDetected)
	assert.Equal(t, 2, res.RegionsGrouped)
	assert.Equal(t, 2, res.RegionsRendered)
	assert.Equal(t, 2, calls, "one translator call per grouped region")
	assert.Equal(t, "mem://page-1/p01_translated.png", res.OutputLocation)
	assert.Equal(t, image.Pt(240, 240), res.Image.Bounds().Size())
	assert.InDelta(t, (0.9+0.8+0.95)/3, res.Confidence, 1e-9)

	require.Len(t, res.Page.TranslatedRegions, 2)
	first := res.Page.TranslatedRegions[0]
	assert.Equal(t, "0-1", first.ID)
	assert.Equal(t, "I don't know, what to do.", first.SourceText)
	assert.Equal(t, "[es] I don't know, what to do.", first.TranslatedText)
	assert.Equal(t, geometry.NewRect(20, 20, 150, 54), first.Box.Rect())

	assert.Equal(t, []string{"processing", "completed"}, h.store.History("page-1"))
	rec, err := h.store.GetPage(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Len(t, rec.Page.DetectedRegions, 3)
	assert.Len(t, rec.Page.TranslatedRegions, 2)
	assert.Equal(t, "mem://page-1/p01_translated.png", rec.OutputLocation)
	assert.Equal(t, "en", rec.Page.SourceLanguage)
}

func TestProcessPageNoContent(t *testing.T) {
	calls := 0
	det := &fakeDetector{dets: []detector.Detection{
		{Polygon: rect(10, 10, 50, 20), Text: "x", Confidence: 0.3},
		{Polygon: rect(10, 40, 50, 20), Text: "   ", Confidence: 0.9},
	}}
	h := newHarness(t, det, prefixTranslator(&calls))

	res, err := h.proc.ProcessPage(context.Background(), request(t, "page-empty"))
	require.Error(t, err)

	assert.Equal(t, errors.ErrorNoContent, errors.CodeOf(err))
	assert.Equal(t, page.StatusFailed, res.Page.Status)
	assert.Equal(t, []string{"processing", "failed"}, h.store.History("page-empty"))
	assert.Zero(t, calls)
	assert.Empty(t, h.publisher.names)

	rec, err := h.store.GetPage(context.Background(), "page-empty")
	require.NoError(t, err)
	assert.Equal(t, "NO_CONTENT", rec.ErrorCode)
	assert.Equal(t, "No text detected in image", rec.Page.FailureReason)
	assert.Contains(t, rec.Metadata, "error")
}

func TestProcessPageFailures(t *testing.T) {
	unavailable := translation.Func(func(ctx context.Context, text, src, tgt string) (string, error) {
		return "", fmt.Errorf("%w: connection refused", translation.ErrUnavailable)
	})
	ok := translation.Func(func(ctx context.Context, text, src, tgt string) (string, error) { return text, nil })

	tests := []struct {
		name       string
		det        *fakeDetector
		tr         translation.Translator
		publishErr error
		image      []byte
		want       errors.ErrorCode
	}{
		{
			name: "translator unavailable",
			det:  &fakeDetector{dets: speechDetections()},
			tr:   unavailable,
			want: errors.ErrorCollaboratorFailed,
		},
		{
			name: "detector unavailable",
			det:  &fakeDetector{err: fmt.Errorf("model not loaded")},
			tr:   ok,
			want: errors.ErrorCollaboratorFailed,
		},
		{
			name:  "not an image",
			det:   &fakeDetector{dets: speechDetections()},
			tr:    ok,
			image: []byte("definitely not a bitmap"),
			want:  errors.ErrorInput,
		},
		{
			name:       "publish fails",
			det:        &fakeDetector{dets: speechDetections()},
			tr:         ok,
			publishErr: fmt.Errorf("disk full"),
			want:       errors.ErrorStorageFailed,
		},
		{
			name: "no geometry",
			det:  &fakeDetector{dets: []detector.Detection{{Text: "floating", Confidence: 0.9}}},
			tr:   ok,
			want: errors.ErrorInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.det, tt.tr)
			h.publisher.err = tt.publishErr
			req := request(t, "p")
			if tt.image != nil {
				req.ImageData = tt.image
			}

			res, err := h.proc.ProcessPage(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.CodeOf(err))
			assert.Equal(t, page.StatusFailed, res.Page.Status)
			assert.NotEmpty(t, res.Page.FailureReason)
			assert.Equal(t, []string{"processing", "failed"}, h.store.History("p"))
		})
	}
}

func TestProcessPageTranslatorUnavailableKeepsDetectedRegions(t *testing.T) {
	unavailable := translation.Func(func(ctx context.Context, text, src, tgt string) (string, error) {
		return "", translation.ErrUnavailable
	})
	h := newHarness(t, &fakeDetector{dets: speechDetections()}, unavailable)

	_, err := h.proc.ProcessPage(context.Background(), request(t, "p"))
	require.Error(t, err)

	rec, err := h.store.GetPage(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, rec.Page.DetectedRegions, 3)
	assert.Empty(t, rec.Page.TranslatedRegions)
	assert.Equal(t, "translator is unavailable", rec.Page.FailureReason)
}

func TestProcessPageRegionErrorKeepsSource(t *testing.T) {
	flaky := translation.Func(func(ctx context.Context, text, src, tgt string) (string, error) {
		if text == "HEY!" {
			return "", fmt.Errorf("model refused")
		}
		return "traducido", nil
	})
	h := newHarness(t, &fakeDetector{dets: speechDetections()}, flaky)

	res, err := h.proc.ProcessPage(context.Background(), request(t, "p"))
	require.NoError(t, err)
	require.Len(t, res.Page.TranslatedRegions, 2)
	assert.Equal(t, "traducido", res.Page.TranslatedRegions[0].TranslatedText)
	assert.Equal(t, "HEY!", res.Page.TranslatedRegions[1].TranslatedText)
}

func TestProcessPageTimeout(t *testing.T) {
	calls := 0
	h := newHarness(t, &fakeDetector{block: true}, prefixTranslator(&calls))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := h.proc.ProcessPage(ctx, request(t, "slow"))
	require.Error(t, err)

	assert.Equal(t, errors.ErrorProcessingTimeout, errors.CodeOf(err))
	assert.Equal(t, page.StatusFailed, res.Page.Status)
	assert.Equal(t, []string{"processing", "failed"}, h.store.History("slow"))
}

func TestProcessPageGeneratesID(t *testing.T) {
	calls := 0
	h := newHarness(t, &fakeDetector{dets: speechDetections()}, prefixTranslator(&calls))

	res, err := h.proc.ProcessPage(context.Background(), request(t, ""))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Page.ID)
	assert.Equal(t, []string{"processing", "completed"}, h.store.History(res.Page.ID))
}

func TestRetranslate(t *testing.T) {
	calls := 0
	det := &fakeDetector{}
	h := newHarness(t, det, prefixTranslator(&calls))

	detected := []page.TextRegion{
		{ID: "1", SourceText: "what to do.", Confidence: 80, Box: geometry.RectBox(geometry.NewRect(20, 50, 150, 24))},
		{ID: "0", SourceText: "I don't know,", Confidence: 90, Box: geometry.RectBox(geometry.NewRect(20, 20, 150, 24))},
	}
	req := request(t, "p")
	req.TargetLanguage = "fr"

	res, err := h.proc.Retranslate(context.Background(), req, detected)
	require.NoError(t, err)

	assert.Zero(t, det.calls)
	assert.Equal(t, 1, calls)
	require.Len(t, res.Page.TranslatedRegions, 1)
	assert.Equal(t, "[fr] I don't know, what to do.", res.Page.TranslatedRegions[0].TranslatedText)
	assert.Equal(t, "1", detected[0].ID, "caller's slice is not reordered")
}

func TestRenderEdited(t *testing.T) {
	calls := 0
	det := &fakeDetector{}
	h := newHarness(t, det, prefixTranslator(&calls))

	edited := []page.TextRegion{
		{ID: "0-1", SourceText: "I don't know, what to do.", TranslatedText: "No sé qué hacer.", Confidence: 85,
			Box: geometry.RectBox(geometry.NewRect(20, 20, 150, 54))},
	}
	res, err := h.proc.RenderEdited(context.Background(), request(t, "p"), edited)
	require.NoError(t, err)

	assert.Zero(t, det.calls)
	assert.Zero(t, calls)
	assert.Equal(t, 1, res.RegionsRendered)
	assert.Equal(t, page.StatusCompleted, res.Page.Status)

	rec, err := h.store.GetPage(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, edited, rec.Page.TranslatedRegions)

	_, err = h.proc.RenderEdited(context.Background(), request(t, "q"), nil)
	assert.Equal(t, errors.ErrorNoContent, errors.CodeOf(err))
}

func TestConcurrentPagesAreIndependent(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	tr := translation.Func(func(ctx context.Context, text, src, tgt string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return text, nil
	})
	h := newHarness(t, &fakeDetector{dets: speechDetections()}, tr)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.proc.ProcessPage(context.Background(), request(t, fmt.Sprintf("p%d", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err)
		assert.Equal(t, []string{"processing", "completed"}, h.store.History(fmt.Sprintf("p%d", i)))
	}
	assert.Equal(t, 8, calls)
}
