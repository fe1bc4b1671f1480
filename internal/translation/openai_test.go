package translation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

func completionBody(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:            "test-key",
		BaseURL:           url,
		Model:             "test-model",
		Temperature:       0.2,
		MaxTokens:         64,
		RequestsPerSecond: 1000,
		MaxRetries:        2,
		RetryInterval:     time.Millisecond,
	})
}

func TestOpenAIClientTranslate(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody(`Translation: "¡Hola!"`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Translate(context.Background(), "Hello!", "en", "es")

	require.NoError(t, err)
	assert.Equal(t, "¡Hola!", out)
	assert.Equal(t, "test-model", gotBody["model"])
	messages, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].(map[string]interface{})["content"], "from English to Spanish")
}

func TestOpenAIClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("Hola"))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Translate(context.Background(), "Hello", "en", "es")

	require.NoError(t, err)
	assert.Equal(t, "Hola", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOpenAIClientClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Translate(context.Background(), "Hello", "en", "es")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIClientEmptyReplyIsUnusable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody(`""`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Translate(context.Background(), "Hello", "en", "es")
	assert.ErrorIs(t, err, ErrUnusableOutput)
}

func TestOpenAIClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Translate(context.Background(), "Hello", "en", "es")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIClientLimiterNearDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("Hola"))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		Model:             "test-model",
		RequestsPerSecond: 0.01, // one token per 100s
		RetryInterval:     time.Millisecond,
	})

	_, err := client.Translate(context.Background(), "Hello", "en", "es")
	require.NoError(t, err)

	// the next token is far past this deadline, so the limiter gives up at once
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = client.Translate(ctx, "Bye", "en", "es")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrUnavailable))

	rt := NewRegionTranslator(client)
	_, err = rt.TranslateRegions(ctx, []page.TextRegion{{ID: "0", SourceText: "Bye"}}, "en", "es")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
