package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/adverant/nexus/pagetranslate-worker/internal/errors"
	"github.com/adverant/nexus/pagetranslate-worker/internal/processor"
)

// TaskTranslatePage is the asynq task type for one page.
const TaskTranslatePage = "translate-page"

// PagePayload is one page job as submitted by the API or the enqueue CLI.
type PagePayload struct {
	PageID         string `json:"pageId"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Filename       string `json:"filename,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	ImagePath      string `json:"imagePath,omitempty"`
	ImageBuffer    []byte `json:"imageBuffer,omitempty"`
	OutputFormat   string `json:"outputFormat,omitempty"`
}

// UnmarshalJSON accepts the image buffer either as a base64 string or as a
// Node.js Buffer object ({"type":"Buffer","data":[...]}).
func (p *PagePayload) UnmarshalJSON(data []byte) error {
	type Alias PagePayload
	aux := &struct {
		ImageBuffer interface{} `json:"imageBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal PagePayload: %w", err)
	}

	p.ImageBuffer = nil
	switch v := aux.ImageBuffer.(type) {
	case nil:
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 imageBuffer: %w", err)
		}
		p.ImageBuffer = decoded
	case map[string]interface{}:
		if bufferType, ok := v["type"].(string); !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.ImageBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.ImageBuffer[i] = byte(byteVal)
		}
	default:
		return fmt.Errorf("imageBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// Validate checks the fields every job needs.
func (p *PagePayload) Validate() error {
	if p.TargetLanguage == "" {
		return fmt.Errorf("targetLanguage is required")
	}
	if len(p.ImageBuffer) == 0 && p.ImageURL == "" && p.ImagePath == "" {
		return fmt.Errorf("one of imageBuffer, imageUrl or imagePath is required")
	}
	return nil
}

// Request converts the payload to a processor request.
func (p *PagePayload) Request() *processor.PageRequest {
	return &processor.PageRequest{
		PageID:         p.PageID,
		SourceLanguage: p.SourceLanguage,
		TargetLanguage: p.TargetLanguage,
		Filename:       p.Filename,
		ImageData:      p.ImageBuffer,
		ImagePath:      p.ImagePath,
		ImageURL:       p.ImageURL,
		OutputFormat:   p.OutputFormat,
	}
}

// retryable reports whether running the page again could succeed. Bad
// input and empty pages fail the same way every time.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrorInput, errors.ErrorNoContent, errors.ErrorInvalidStatusChange:
		return false
	}
	return true
}

// resultSummary is what gets stored for a completed job.
func resultSummary(res *processor.PageResult) map[string]interface{} {
	if res == nil || res.Page == nil {
		return nil
	}
	return map[string]interface{}{
		"pageId":           res.Page.ID,
		"status":           string(res.Page.Status),
		"outputLocation":   res.OutputLocation,
		"regionsDetected":  res.RegionsDetected,
		"regionsGrouped":   res.RegionsGrouped,
		"regionsRendered":  res.RegionsRendered,
		"confidence":       res.Confidence,
		"eraseDegraded":    res.EraseDegraded,
		"processingTimeMs": res.ProcessingTimeMs,
	}
}
