/**
 * PostgreSQL Client for the page translation worker
 *
 * Persists page status, failure records and the detected/translated region
 * lists so a page can be re-rendered or re-translated later.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// PageUpdate represents a page status update
type PageUpdate struct {
	PageID           string
	Status           string
	SourceLanguage   string
	TargetLanguage   string
	Filename         string
	RegionCount      int
	Confidence       float64 // mean detection confidence, 0..1
	ProcessingTimeMs int64
	OutputLocation   string
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// PageRecord is a page as stored, with its region lists.
type PageRecord struct {
	Page           *page.Page
	Filename       string
	OutputLocation string
	ErrorCode      string
	Confidence     float64
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS pagetranslate;
	CREATE TABLE IF NOT EXISTS pagetranslate.pages (
		id                 TEXT PRIMARY KEY,
		status             TEXT NOT NULL,
		source_language    TEXT,
		target_language    TEXT,
		filename           TEXT,
		region_count       INTEGER,
		confidence         NUMERIC(5,4),
		processing_time_ms BIGINT,
		output_location    TEXT,
		error_code         TEXT,
		error_message      TEXT,
		detected_regions   JSONB NOT NULL DEFAULT '[]'::jsonb,
		translated_regions JSONB NOT NULL DEFAULT '[]'::jsonb,
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to
// [0.0, 1.0] so it always fits NUMERIC(5,4).
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the pages table when it does not exist yet.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdatePageStatus upserts the page row. Empty fields keep what is stored.
func (p *PostgresClient) UpdatePageStatus(ctx context.Context, update *PageUpdate) error {
	if update == nil || update.PageID == "" {
		return fmt.Errorf("page ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	confidence := sanitizeConfidence(update.Confidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)

	// Error columns are replaced rather than coalesced: a page that completes
	// after a failed attempt must not keep the old failure.
	query := `
		INSERT INTO pagetranslate.pages (
			id, status, source_language, target_language, filename,
			region_count, confidence, processing_time_ms, output_location,
			error_code, error_message, metadata, created_at, updated_at
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			NULLIF($6, 0), NULLIF($7::NUMERIC(5,4), 0), NULLIF($8, 0), NULLIF($9, ''),
			NULLIF($10, ''), NULLIF($11, ''),
			COALESCE(NULLIF($12, 'null')::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			source_language = COALESCE(EXCLUDED.source_language, pagetranslate.pages.source_language),
			target_language = COALESCE(EXCLUDED.target_language, pagetranslate.pages.target_language),
			filename = COALESCE(EXCLUDED.filename, pagetranslate.pages.filename),
			region_count = COALESCE(EXCLUDED.region_count, pagetranslate.pages.region_count),
			confidence = COALESCE(EXCLUDED.confidence, pagetranslate.pages.confidence),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, pagetranslate.pages.processing_time_ms),
			output_location = COALESCE(EXCLUDED.output_location, pagetranslate.pages.output_location),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			metadata = pagetranslate.pages.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.PageID,           // $1
		update.Status,           // $2
		update.SourceLanguage,   // $3
		update.TargetLanguage,   // $4
		update.Filename,         // $5
		update.RegionCount,      // $6
		confidence,              // $7
		update.ProcessingTimeMs, // $8
		update.OutputLocation,   // $9
		update.ErrorCode,        // $10
		update.ErrorMessage,     // $11
		string(metadataJSON),    // $12
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update page status (page=%s, status=%s): %w",
			update.PageID, update.Status, err)
	}

	return nil
}

// SaveRegions stores the detected and translated region lists in order. A
// nil list leaves the stored one untouched.
func (p *PostgresClient) SaveRegions(ctx context.Context, pageID string, detected, translated []page.TextRegion) error {
	if pageID == "" {
		return fmt.Errorf("page ID is required")
	}

	detectedJSON, err := marshalRegions(detected)
	if err != nil {
		return fmt.Errorf("failed to marshal detected regions: %w", err)
	}
	translatedJSON, err := marshalRegions(translated)
	if err != nil {
		return fmt.Errorf("failed to marshal translated regions: %w", err)
	}

	query := `
		UPDATE pagetranslate.pages SET
			detected_regions = COALESCE($2::jsonb, detected_regions),
			translated_regions = COALESCE($3::jsonb, translated_regions),
			updated_at = NOW()
		WHERE id = $1
	`

	res, err := p.db.ExecContext(ctx, query, pageID, detectedJSON, translatedJSON)
	if err != nil {
		return fmt.Errorf("failed to save regions (page=%s): %w", pageID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("page not found: %s", pageID)
	}

	return nil
}

// marshalRegions returns nil (SQL NULL) for a nil list.
func marshalRegions(regions []page.TextRegion) (interface{}, error) {
	if regions == nil {
		return nil, nil
	}
	data, err := json.Marshal(regions)
	if err != nil {
		return nil, err
	}
	return string(sanitizeJSONForPostgres(data)), nil
}

// GetPage retrieves a page with its regions
func (p *PostgresClient) GetPage(ctx context.Context, pageID string) (*PageRecord, error) {
	if pageID == "" {
		return nil, fmt.Errorf("page ID is required")
	}

	query := `
		SELECT
			id, status, source_language, target_language, filename,
			confidence, output_location, error_code, error_message,
			detected_regions, translated_regions, metadata,
			created_at, updated_at
		FROM pagetranslate.pages
		WHERE id = $1
	`

	var (
		id, status                   string
		sourceLang, targetLang       sql.NullString
		filename, outputLocation     sql.NullString
		errorCode, errorMessage      sql.NullString
		confidence                   sql.NullFloat64
		detectedJSON, translatedJSON []byte
		metadataJSON                 []byte
		createdAt, updatedAt         time.Time
	)

	err := p.db.QueryRowContext(ctx, query, pageID).Scan(
		&id, &status, &sourceLang, &targetLang, &filename,
		&confidence, &outputLocation, &errorCode, &errorMessage,
		&detectedJSON, &translatedJSON, &metadataJSON,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("page not found: %s", pageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	rec := &PageRecord{
		Page: &page.Page{
			ID:             id,
			Status:         page.Status(status),
			SourceLanguage: sourceLang.String,
			TargetLanguage: targetLang.String,
			FailureReason:  errorMessage.String,
			UpdatedAt:      updatedAt,
		},
		Filename:       filename.String,
		OutputLocation: outputLocation.String,
		ErrorCode:      errorCode.String,
		Confidence:     confidence.Float64,
		CreatedAt:      createdAt,
	}

	if err := json.Unmarshal(detectedJSON, &rec.Page.DetectedRegions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detected regions: %w", err)
	}
	if err := json.Unmarshal(translatedJSON, &rec.Page.TranslatedRegions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal translated regions: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return rec, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
