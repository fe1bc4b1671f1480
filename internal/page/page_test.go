package page

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/adverant/nexus/pagetranslate-worker/internal/errors"
	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
)

func TestTransitions(t *testing.T) {
	p := New("", "ja", "en")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, StatusPending, p.Status)

	require.NoError(t, p.Transition(StatusProcessing))
	require.NoError(t, p.Transition(StatusCompleted))
	assert.True(t, p.Status.Terminal())

	err := p.Transition(StatusProcessing)
	require.Error(t, err)
	assert.Equal(t, werrors.ErrorInvalidStatusChange, werrors.CodeOf(err))
}

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusProcessing, StatusCompleted}: true,
		{StatusProcessing, StatusFailed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestFail(t *testing.T) {
	p := New("p1", "ko", "es")
	assert.Error(t, p.Fail("too early"))
	assert.Empty(t, p.FailureReason)

	require.NoError(t, p.Transition(StatusProcessing))
	require.NoError(t, p.Fail("No text detected in image"))
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "No text detected in image", p.FailureReason)
}

func TestRegionJSONShape(t *testing.T) {
	regions := []TextRegion{
		{
			ID:               "0-2",
			SourceText:       "Hello world",
			TranslatedText:   "Hola mundo",
			Confidence:       87.5,
			Box:              geometry.RectBox(geometry.NewRect(10, 10, 102, 42)),
			DetectedLanguage: "en",
		},
		{
			ID:         "3",
			SourceText: "why?",
			Confidence: 60,
			Box:        geometry.Polygon([]image.Point{{1, 1}, {9, 1}, {9, 5}}),
		},
	}

	data, err := json.Marshal(regions)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":"0-2","text":"Hello world","translatedText":"Hola mundo","confidence":87.5,"box":[10,10,102,42],"languageDetected":"en"},
		{"id":"3","text":"why?","confidence":60,"box":[[1,1],[9,1],[9,5]],"languageDetected":""}
	]`, string(data))

	var decoded []TextRegion
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, regions, decoded)
}

func TestSortByTopIsStable(t *testing.T) {
	regions := []TextRegion{
		{ID: "a", Box: geometry.RectBox(geometry.NewRect(0, 30, 5, 5))},
		{ID: "b", Box: geometry.RectBox(geometry.NewRect(0, 10, 5, 5))},
		{ID: "c", Box: geometry.RectBox(geometry.NewRect(50, 30, 5, 5))},
	}
	SortByTop(regions)
	assert.Equal(t, "b", regions[0].ID)
	assert.Equal(t, "a", regions[1].ID)
	assert.Equal(t, "c", regions[2].ID)
}

func TestWorkingText(t *testing.T) {
	assert.Equal(t, "src", TextRegion{SourceText: "src"}.WorkingText())
	assert.Equal(t, "dst", TextRegion{SourceText: "src", TranslatedText: "dst"}.WorkingText())
	assert.False(t, TextRegion{}.HasText())
}
