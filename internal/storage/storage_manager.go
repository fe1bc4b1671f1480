/**
 * Storage Manager for the page translation worker
 *
 * Coordinates page persistence (PostgreSQL, or memory for one-shot runs)
 * with publishing of the rendered bitmap (local directory or artifact API).
 */

package storage

import (
	"context"
	"fmt"
	"image"
	"regexp"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// PageStore persists page status and regions.
type PageStore interface {
	UpdatePageStatus(ctx context.Context, update *PageUpdate) error
	SaveRegions(ctx context.Context, pageID string, detected, translated []page.TextRegion) error
	GetPage(ctx context.Context, pageID string) (*PageRecord, error)
}

// Publisher hands a rendered page to durable storage and returns where it
// went.
type Publisher interface {
	Publish(ctx context.Context, pageID, name string, img image.Image, format imaging.Format) (string, error)
}

// StorageManager coordinates the page store and the publisher
type StorageManager struct {
	store     PageStore
	publisher Publisher
	postgres  *PostgresClient
	logger    *logging.Logger
}

// NewStorageManager wires a page store and a publisher. Either may be nil;
// a nil store drops status updates and a nil publisher fails Publish.
func NewStorageManager(store PageStore, publisher Publisher) *StorageManager {
	sm := &StorageManager{
		store:     store,
		publisher: publisher,
		logger:    logging.NewLogger("StorageManager"),
	}
	if pg, ok := store.(*PostgresClient); ok {
		sm.postgres = pg
	}
	return sm
}

// NewPostgresStorageManager connects to PostgreSQL, creates the schema and
// wires the given publisher.
func NewPostgresStorageManager(ctx context.Context, postgresURL string, publisher Publisher) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		postgres.Close()
		return nil, err
	}
	return NewStorageManager(postgres, publisher), nil
}

// UpdatePageStatus updates page status in the page store
func (sm *StorageManager) UpdatePageStatus(ctx context.Context, update *PageUpdate) error {
	if sm.store == nil {
		sm.logger.Debug("No page store configured, dropping status update", "page", update.PageID, "status", update.Status)
		return nil
	}
	return sm.store.UpdatePageStatus(ctx, update)
}

// SaveRegions stores region lists in the page store
func (sm *StorageManager) SaveRegions(ctx context.Context, pageID string, detected, translated []page.TextRegion) error {
	if sm.store == nil {
		return nil
	}
	return sm.store.SaveRegions(ctx, pageID, detected, translated)
}

// GetPage retrieves a stored page
func (sm *StorageManager) GetPage(ctx context.Context, pageID string) (*PageRecord, error) {
	if sm.store == nil {
		return nil, fmt.Errorf("no page store configured")
	}
	return sm.store.GetPage(ctx, pageID)
}

// Publish hands the rendered page to the configured publisher
func (sm *StorageManager) Publish(ctx context.Context, pageID, name string, img image.Image, format imaging.Format) (string, error) {
	if sm.publisher == nil {
		return "", fmt.Errorf("no publisher configured")
	}
	location, err := sm.publisher.Publish(ctx, pageID, name, img, format)
	if err != nil {
		return "", fmt.Errorf("failed to publish page %s: %w", pageID, err)
	}
	sm.logger.Debug("Page published", "page", pageID, "location", location)
	return location, nil
}

// GetStats returns statistics from the backing database, if any
func (sm *StorageManager) GetStats(ctx context.Context) map[string]interface{} {
	if sm.postgres == nil {
		return map[string]interface{}{"postgres": nil}
	}
	pgStats := sm.postgres.GetStats()
	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
	}
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL: %w", err)
		}
	}
	return nil
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences JSONB rejects (\u0000)
// and replaces other control character escapes with a space. OCR output
// occasionally carries both.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
