/**
 * Artifact Client for the page translation worker
 *
 * Uploads rendered pages to permanent storage via the artifact API and
 * returns the download URL that gets recorded next to the page.
 *
 * Storage Flow:
 * 1. Worker renders the translated page
 * 2. Worker encodes it and calls /api/files/upload
 * 3. API stores the file and returns artifact ID and download URL
 * 4. Worker stores the URL as the page's output location
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/pagetranslate-worker/internal/imageio"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
)

// SourceService identifies this worker to the artifact API.
const SourceService = "pagetranslate-worker"

// ArtifactClient handles communication with the artifact API
type ArtifactClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ArtifactUploadRequest represents a file upload request
type ArtifactUploadRequest struct {
	FileBuffer    []byte                 // File content
	Filename      string                 // Stored filename
	MimeType      string                 // MIME type (e.g., image/png)
	SourceService string                 // Service creating the artifact
	SourceID      string                 // Source identifier (page id)
	TTLDays       int                    // Time-to-live in days (0 = ~100 years)
	Metadata      map[string]interface{} // Additional metadata
}

// ArtifactUploadResponse represents the response from uploading an artifact
type ArtifactUploadResponse struct {
	Success  bool   `json:"success"`
	Artifact struct {
		ID             string `json:"id"`
		Filename       string `json:"filename"`
		FileSize       int64  `json:"file_size"`
		MimeType       string `json:"mime_type"`
		StorageBackend string `json:"storage_backend"`
		DownloadURL    string `json:"download_url"`
		CreatedAt      string `json:"created_at"`
		ExpiresAt      string `json:"expires_at,omitempty"`
	} `json:"artifact,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewArtifactClient creates a new artifact client
func NewArtifactClient(baseURL string) *ArtifactClient {
	return &ArtifactClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: logging.NewLogger("ArtifactClient"),
	}
}

// HealthCheck verifies the artifact API is available
func (c *ArtifactClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("artifact service health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("artifact service health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Publish encodes the rendered page and uploads it. It returns the
// artifact's download URL.
func (c *ArtifactClient) Publish(ctx context.Context, pageID, name string, img image.Image, format imaging.Format) (string, error) {
	if img == nil {
		return "", fmt.Errorf("no image to publish")
	}
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, format); err != nil {
		return "", err
	}
	b := img.Bounds()
	resp, err := c.UploadArtifact(ctx, &ArtifactUploadRequest{
		FileBuffer:    buf.Bytes(),
		Filename:      name,
		MimeType:      imageio.MimeType(format),
		SourceService: SourceService,
		SourceID:      pageID,
		Metadata: map[string]interface{}{
			"width":  b.Dx(),
			"height": b.Dy(),
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Artifact.DownloadURL, nil
}

// UploadArtifact uploads a file to permanent storage
func (c *ArtifactClient) UploadArtifact(ctx context.Context, req *ArtifactUploadRequest) (*ArtifactUploadResponse, error) {
	if len(req.FileBuffer) == 0 {
		return nil, fmt.Errorf("file buffer is required: received empty buffer")
	}
	if req.Filename == "" {
		return nil, fmt.Errorf("filename is required: received empty string")
	}
	if req.SourceService == "" {
		return nil, fmt.Errorf("source_service is required: identifies the service creating this artifact")
	}
	if req.SourceID == "" {
		return nil, fmt.Errorf("source_id is required: identifies the page this artifact belongs to")
	}

	c.logger.Info("Uploading artifact",
		"filename", req.Filename, "bytes", len(req.FileBuffer), "mimeType", req.MimeType, "sourceId", req.SourceID)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// CreateFormFile would label the part application/octet-stream.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.Filename))
	header.Set("Content-Type", req.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file part: %w", err)
	}
	if _, err := part.Write(req.FileBuffer); err != nil {
		return nil, fmt.Errorf("failed to write file data to form: %w", err)
	}

	if err := writer.WriteField("source_service", req.SourceService); err != nil {
		return nil, fmt.Errorf("failed to write source_service field: %w", err)
	}
	if err := writer.WriteField("source_id", req.SourceID); err != nil {
		return nil, fmt.Errorf("failed to write source_id field: %w", err)
	}

	ttlDays := req.TTLDays
	if ttlDays <= 0 {
		ttlDays = 36500
	}
	if err := writer.WriteField("ttl_days", fmt.Sprintf("%d", ttlDays)); err != nil {
		return nil, fmt.Errorf("failed to write ttl_days field: %w", err)
	}

	if len(req.Metadata) > 0 {
		metadataJSON, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata to JSON: %w", err)
		}
		if err := writer.WriteField("metadata", string(metadataJSON)); err != nil {
			return nil, fmt.Errorf("failed to write metadata field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to artifact storage failed after %v: %w", time.Since(startTime), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("artifact upload failed with HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result ArtifactUploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse artifact upload response: %w (raw response: %s)", err, string(respBody))
	}
	if !result.Success {
		return nil, fmt.Errorf("artifact upload returned success=false: %s", result.Error)
	}
	if result.Artifact.ID == "" {
		return nil, fmt.Errorf("artifact upload succeeded but returned empty artifact ID")
	}

	c.logger.Info("Artifact uploaded",
		"id", result.Artifact.ID, "storage", result.Artifact.StorageBackend,
		"url", result.Artifact.DownloadURL, "duration", time.Since(startTime))

	return &result, nil
}
