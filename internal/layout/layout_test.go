package layout

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"

	"github.com/adverant/nexus/pagetranslate-worker/internal/fonts"
	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
)

// monoFace stands in for a real face; only its size is used.
type monoFace struct {
	font.Face
	size float64
}

// monoProvider measures every rune as half the point size.
type monoProvider struct{}

func (monoProvider) Face(_ string, size float64) font.Face { return monoFace{size: size} }

func (monoProvider) Measure(text string, face font.Face) int {
	return int(math.Round(float64(utf8.RuneCountInString(text)) * face.(monoFace).size / 2))
}

func TestSplitSentences(t *testing.T) {
	tests := map[string][]string{
		"Wait... What?! No.":            {"Wait...", "What?!", "No."},
		"He said \"Go!\" and left":      {"He said \"Go!\"", "and left"},
		"Note: be careful":              {"Note:", "be careful"},
		"no punctuation here":           {"no punctuation here"},
		"  ":                            nil,
		"¿Qué? ¡Nada!":                  {"¿Qué?", "¡Nada!"},
		"何？いや。":                         {"何？", "いや。"},
	}
	for in, want := range tests {
		assert.Equal(t, want, SplitSentences(in), "input %q", in)
	}
}

func TestWrapGreedy(t *testing.T) {
	fp := monoProvider{}
	lines := Wrap("aaa bbb ccc ddd", fp.Face("en", 10), 40, fp)
	assert.Equal(t, []string{"aaa bbb", "ccc ddd"}, lines)
}

func TestWrapKeepsLongWordWhole(t *testing.T) {
	fp := monoProvider{}
	lines := Wrap("a supercalifragilistic word", fp.Face("en", 10), 40, fp)
	assert.Equal(t, []string{"a", "supercalifragilistic", "word"}, lines)
}

func TestWrapInvariant(t *testing.T) {
	fp := monoProvider{}
	text := "I never thought I would see you again. After all these years, here you are! " +
		"Tell me, what brought you back to this forsaken town?"

	for _, width := range []int{30, 45, 60, 90, 150, 400} {
		face := fp.Face("en", 12)
		for _, line := range Wrap(text, face, width, fp) {
			if strings.Contains(line, " ") {
				assert.LessOrEqual(t, fp.Measure(line, face), width, "width %d line %q", width, line)
			}
		}
	}
}

func TestFitChunksUnbrokenToken(t *testing.T) {
	f := NewFitter(monoProvider{}, DefaultOptions())
	token := strings.Repeat("x", 40)

	l := f.Fit(geometry.NewRect(0, 0, 60, 200), token, "en")

	assert.Equal(t, 12.0, l.FontSize)
	assert.True(t, l.Chunked)
	require.Len(t, l.Lines, 5)
	for _, line := range l.Lines {
		assert.Equal(t, "xxxxxxxx", line)
		assert.LessOrEqual(t, monoProvider{}.Measure(line, monoFace{size: l.FontSize}), l.AvailableWidth)
	}
	assert.Equal(t, token, strings.Join(l.Lines, ""))
}

func TestFitShrinksOnce(t *testing.T) {
	f := NewFitter(monoProvider{}, DefaultOptions())

	l := f.Fit(geometry.NewRect(0, 0, 200, 40), "One two three. Four five six. Seven eight nine.", "en")

	assert.True(t, l.Shrunk)
	assert.Equal(t, 10.0, l.FontSize)
	assert.Equal(t, []string{"One two three.", "Four five six.", "Seven eight nine."}, l.Lines)
	assert.InDelta(t, 12.0, l.LineHeight, 1e-9)
}

func TestFitSingleLineNeverShrinks(t *testing.T) {
	f := NewFitter(monoProvider{}, DefaultOptions())

	l := f.Fit(geometry.NewRect(0, 0, 400, 10), "Hi there", "en")

	assert.False(t, l.Shrunk)
	assert.Equal(t, 12.0, l.FontSize)
	assert.Equal(t, []string{"Hi there"}, l.Lines)
}

func TestStartSize(t *testing.T) {
	f := NewFitter(monoProvider{}, DefaultOptions())
	assert.Equal(t, 12.0, f.StartSize(geometry.NewRect(0, 0, 50, 20)))
	assert.Equal(t, 30.0, f.StartSize(geometry.NewRect(0, 0, 300, 600)))
	assert.Equal(t, 33.0, f.StartSize(geometry.NewRect(0, 0, 1000, 100)))
}

func TestFitExtractsSpeakerTag(t *testing.T) {
	f := NewFitter(monoProvider{}, DefaultOptions())

	l := f.Fit(geometry.NewRect(0, 0, 300, 150), "We leave at dawn. - Kim Dokja", "en")

	assert.Equal(t, "- Kim Dokja", l.NameTag)
	assert.Equal(t, []string{"We leave at dawn."}, l.Lines)
	assert.Equal(t, math.Max(math.Floor(l.FontSize*0.6), 8), l.NameTagSize)
}

func TestExtractSpeakerTag(t *testing.T) {
	tests := []struct {
		in, body, tag string
	}{
		{"Let's go! - Kim Dokja", "Let's go!", "- Kim Dokja"},
		{"Run. — Han Sooyoung", "Run.", "— Han Sooyoung"},
		{"Run. –Yoo Joonghyuk ", "Run.", "–Yoo Joonghyuk"},
		{"- Kim Dokja", "- Kim Dokja", ""},
		{"A well-Known Person", "A well-Known Person", ""},
		{"We wait - kim dokja", "We wait - kim dokja", ""},
		{"Nothing to see", "Nothing to see", ""},
	}
	for _, tt := range tests {
		body, tag := ExtractSpeakerTag(tt.in)
		assert.Equal(t, tt.body, body, "input %q", tt.in)
		assert.Equal(t, tt.tag, tag, "input %q", tt.in)
	}
}

func TestFitIsDeterministic(t *testing.T) {
	f := NewFitter(fonts.NewCache(nil), DefaultOptions())
	rect := geometry.NewRect(10, 10, 140, 90)
	text := "¿De verdad crees que puedes ganar? No tienes ninguna oportunidad. - Kim Dokja"

	first := f.Fit(rect, text, "es")
	second := f.Fit(rect, text, "es")

	assert.Equal(t, first, second)
}

func TestFitWithRealFontRespectsWidth(t *testing.T) {
	cache := fonts.NewCache(nil)
	f := NewFitter(cache, DefaultOptions())
	rect := geometry.NewRect(0, 0, 160, 120)

	l := f.Fit(rect, "The storm is coming and nobody in the village believes me.", "en")
	face := cache.Face("en", l.FontSize)

	require.NotEmpty(t, l.Lines)
	for _, line := range l.Lines {
		assert.LessOrEqual(t, cache.Measure(line, face), l.AvailableWidth, "line %q", line)
	}
}
