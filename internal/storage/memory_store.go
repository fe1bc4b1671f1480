package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// MemoryStore is a PageStore for one-shot runs and tests. It also keeps the
// sequence of statuses each page went through.
type MemoryStore struct {
	mu      sync.RWMutex
	pages   map[string]*PageRecord
	history map[string][]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages:   make(map[string]*PageRecord),
		history: make(map[string][]string),
	}
}

func (m *MemoryStore) UpdatePageStatus(ctx context.Context, update *PageUpdate) error {
	if update == nil || update.PageID == "" {
		return fmt.Errorf("page ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pages[update.PageID]
	if !ok {
		rec = &PageRecord{
			Page:      &page.Page{ID: update.PageID},
			Metadata:  map[string]interface{}{},
			CreatedAt: time.Now(),
		}
		m.pages[update.PageID] = rec
	}
	rec.Page.Status = page.Status(update.Status)
	rec.Page.UpdatedAt = time.Now()
	rec.Page.FailureReason = update.ErrorMessage
	rec.ErrorCode = update.ErrorCode
	if update.SourceLanguage != "" {
		rec.Page.SourceLanguage = update.SourceLanguage
	}
	if update.TargetLanguage != "" {
		rec.Page.TargetLanguage = update.TargetLanguage
	}
	if update.Filename != "" {
		rec.Filename = update.Filename
	}
	if update.OutputLocation != "" {
		rec.OutputLocation = update.OutputLocation
	}
	if update.Confidence != 0 {
		rec.Confidence = sanitizeConfidence(update.Confidence)
	}
	for k, v := range update.Metadata {
		rec.Metadata[k] = v
	}
	m.history[update.PageID] = append(m.history[update.PageID], update.Status)
	return nil
}

func (m *MemoryStore) SaveRegions(ctx context.Context, pageID string, detected, translated []page.TextRegion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pages[pageID]
	if !ok {
		return fmt.Errorf("page not found: %s", pageID)
	}
	if detected != nil {
		rec.Page.DetectedRegions = page.Clone(detected)
	}
	if translated != nil {
		rec.Page.TranslatedRegions = page.Clone(translated)
	}
	return nil
}

// GetPage returns a copy of the stored page.
func (m *MemoryStore) GetPage(ctx context.Context, pageID string) (*PageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("page not found: %s", pageID)
	}
	cp := *rec
	p := *rec.Page
	p.DetectedRegions = page.Clone(rec.Page.DetectedRegions)
	p.TranslatedRegions = page.Clone(rec.Page.TranslatedRegions)
	cp.Page = &p
	cp.Metadata = make(map[string]interface{}, len(rec.Metadata))
	for k, v := range rec.Metadata {
		cp.Metadata[k] = v
	}
	return &cp, nil
}

// History returns the statuses recorded for a page, oldest first.
func (m *MemoryStore) History(pageID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.history[pageID]...)
}
