package imageio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
)

// Source names where a page image comes from. The first non-empty field
// wins: Buffer, then Path, then URL.
type Source struct {
	Buffer []byte
	Path   string
	URL    string
}

// Loader fetches encoded page images.
type Loader struct {
	client      *http.Client
	maxFileSize int64
	maxRetries  uint64
	retryDelay  time.Duration
	logger      *logging.Logger
}

// NewLoader creates a loader. maxFileSize <= 0 disables the size check.
func NewLoader(maxFileSize int64) *Loader {
	return &Loader{
		client:      &http.Client{Timeout: 2 * time.Minute},
		maxFileSize: maxFileSize,
		maxRetries:  4,
		retryDelay:  time.Second,
		logger:      logging.NewLogger("ImageLoader"),
	}
}

// Load returns the encoded bytes of the source image.
func (l *Loader) Load(ctx context.Context, src Source) ([]byte, error) {
	switch {
	case len(src.Buffer) > 0:
		if err := l.checkSize(int64(len(src.Buffer))); err != nil {
			return nil, err
		}
		return src.Buffer, nil
	case src.Path != "":
		info, err := os.Stat(src.Path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", src.Path, err)
		}
		if err := l.checkSize(info.Size()); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.Path, err)
		}
		return data, nil
	case src.URL != "":
		return l.download(ctx, src.URL)
	}
	return nil, fmt.Errorf("no image source provided (buffer, path or URL)")
}

func (l *Loader) checkSize(n int64) error {
	if l.maxFileSize > 0 && n > l.maxFileSize {
		return fmt.Errorf("image size exceeds maximum: %d > %d bytes", n, l.maxFileSize)
	}
	return nil
}

// download fetches a URL, retrying transport errors and non-2xx answers
// with exponential backoff.
func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := l.client.Do(req)
		if err != nil {
			l.logger.Warn("Download attempt failed", "attempt", attempt, "url", url, "error", err)
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, backoff.Permanent(fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			l.logger.Warn("Download attempt failed", "attempt", attempt, "url", url, "status", resp.StatusCode)
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}
		if err := l.checkSize(resp.ContentLength); err != nil {
			return nil, backoff.Permanent(err)
		}

		limit := l.maxFileSize
		if limit <= 0 {
			limit = 1 << 30
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if err := l.checkSize(int64(len(data))); err != nil {
			return nil, backoff.Permanent(err)
		}
		return data, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = l.retryDelay
	eb.MaxInterval = 32 * time.Second

	data, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(eb, l.maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to download image after %d attempts: %w", attempt, err)
	}
	l.logger.Debug("Image downloaded", "url", url, "bytes", len(data), "attempts", attempt)
	return data, nil
}
