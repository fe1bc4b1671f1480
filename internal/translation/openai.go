package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"

	"github.com/adverant/nexus/pagetranslate-worker/internal/langtag"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
)

const systemPrompt = `You translate dialogue from comic and manga speech balloons from %s to %s.
Reply with the translation only: no quotes, notes, romanization or explanations.
Keep it about as long as the original so it fits in the same balloon.
Keep a trailing speaker tag such as "- Name Surname" unchanged.`

// OpenAIConfig configures an OpenAI-compatible chat completion translator
// (OpenAI, OpenRouter, local gateways).
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int
	RequestsPerSecond float64
	MaxRetries        uint64
	RetryInterval     time.Duration
	HTTPClient        *http.Client
}

// OpenAIClient translates through a chat completion endpoint.
type OpenAIClient struct {
	client        openai.Client
	model         string
	temperature   float64
	maxTokens     int
	limiter       *rate.Limiter
	maxRetries    uint64
	retryInterval time.Duration
	logger        *logging.Logger
}

var _ Translator = (*OpenAIClient)(nil)

// NewOpenAIClient creates a translator client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	return &OpenAIClient{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		logger:        logging.NewLogger("OpenAITranslator"),
	}
}

// Translate sends one text to the model. Transport errors, 429 and 5xx are
// retried with exponential backoff; if the endpoint never answers the error
// wraps ErrUnavailable.
func (c *OpenAIClient) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPrompt,
				langtag.Name(sourceLanguage, "the source language"),
				langtag.Name(targetLanguage, targetLanguage))),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	attempt := 0
	op := func() (string, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(limiterError(ctx, err))
		}

		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", classify(ctx, err)
		}
		if len(resp.Choices) == 0 {
			return "", backoff.Permanent(ErrUnusableOutput)
		}
		out := CleanOutput(resp.Choices[0].Message.Content)
		if out == "" {
			return "", backoff.Permanent(ErrUnusableOutput)
		}
		return out, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	out, err := backoff.RetryWithData(op, policy)
	if err != nil {
		c.logger.Warn("Translation request failed", "attempts", attempt, "error", err)
		if isTransportError(err) {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return "", err
	}
	return out, nil
}

// classify marks errors that retrying cannot fix as permanent.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return backoff.Permanent(ctxErr)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return err
		}
		return backoff.Permanent(err)
	}
	return err
}

// limiterError maps a failed limiter wait to a context error. Wait fails
// early, with a plain error, when the deadline would pass before a token
// frees up.
func limiterError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// isTransportError reports whether err came from the network rather than
// from an HTTP response.
func isTransportError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return false
	}
	return !errors.Is(err, ErrUnusableOutput) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
