package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPageErrorWrapping(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("translate stage: %w", NewCollaboratorError("p1", "translator", cause))

	assert.Equal(t, ErrorCollaboratorFailed, CodeOf(err))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "translator is unavailable", Reason(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("boom")))
	assert.Equal(t, "boom", Reason(stderrors.New("boom")))
	assert.Equal(t, "", Reason(nil))
}

func TestToMap(t *testing.T) {
	err := NewNoContentError("p2", 3)
	m := err.ToMap()

	assert.Equal(t, "NO_CONTENT", m["error_code"])
	assert.Equal(t, "No text detected in image", m["message"])
	assert.Equal(t, "detection", m["stage"])
	assert.Equal(t, 3, m["raw_detections"])
	assert.NotContains(t, m, "cause")

	timeout := NewProcessingTimeoutError("p3", 2*time.Second, stderrors.New("deadline"))
	tm := timeout.ToMap()
	assert.Equal(t, "2s", tm["timeout_duration"])
	assert.Equal(t, "deadline", tm["cause"])
}

func TestWithStage(t *testing.T) {
	err := NewStorageFailedError("p4", "save", nil).WithStage("publish")
	assert.Equal(t, "publish", err.Stage)
	assert.Equal(t, "STORAGE_FAILED: Failed to store processing results", err.Error())
}
