// Package translation sits between the pipeline and the external
// translation backend: punctuation shortcuts, per-region fallback, the
// OpenAI-compatible client and an exact-match cache.
package translation

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks failures where the backend could not be reached
	// at all. The pipeline treats it as fatal for the page.
	ErrUnavailable = errors.New("translator unavailable")

	// ErrUnusableOutput marks replies that carry no usable translation.
	ErrUnusableOutput = errors.New("translator returned unusable output")
)

// Translator translates a single string.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

// Func adapts a function to the Translator interface.
type Func func(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)

func (f Func) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	return f(ctx, text, sourceLanguage, targetLanguage)
}
