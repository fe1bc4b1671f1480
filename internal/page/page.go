// Package page defines the unit of work of the pipeline and its status
// state machine.
package page

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	werrors "github.com/adverant/nexus/pagetranslate-worker/internal/errors"
)

// Status of a page in the pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Page is the unit of work.
type Page struct {
	ID                string
	Status            Status
	SourceLanguage    string
	TargetLanguage    string
	DetectedRegions   []TextRegion
	TranslatedRegions []TextRegion
	FailureReason     string
	UpdatedAt         time.Time
}

// New creates a pending page. An empty id gets a fresh UUID.
func New(id, sourceLanguage, targetLanguage string) *Page {
	if id == "" {
		id = uuid.New().String()
	}
	return &Page{
		ID:             id,
		Status:         StatusPending,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
		UpdatedAt:      time.Now(),
	}
}

// Transition moves the page to the given status. Only
// pending -> processing -> completed|failed is allowed.
func (p *Page) Transition(to Status) error {
	if !CanTransition(p.Status, to) {
		return werrors.NewInvalidStatusChangeError(p.ID, string(p.Status), string(to))
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return nil
}

// Fail moves the page to failed and records the reason.
func (p *Page) Fail(reason string) error {
	if err := p.Transition(StatusFailed); err != nil {
		return fmt.Errorf("recording failure %q: %w", reason, err)
	}
	p.FailureReason = reason
	return nil
}
