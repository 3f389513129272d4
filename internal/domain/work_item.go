package domain

import "errors"

// DefaultMaxAttempts is the retry budget applied to a work item when
// none is specified.
const DefaultMaxAttempts = 3

// Common validation errors for WorkItem
var (
	ErrEmptyWorkItemIdentity = errors.New("work item identity cannot be empty")
	ErrInvalidMaxAttempts    = errors.New("work item max attempts cannot be negative")
)

// ItemPayload carries the provider-call parameters for one work item.
// It is a plain value with no shared mutable state; fields that do not
// apply to a given job kind are left zero.
type ItemPayload struct {
	// Prompt is the text prompt sent to the provider.
	Prompt string `json:"prompt,omitempty"`

	// ReferenceImages are raw image bytes attached to the provider call
	// (template style references, material images, edit sources).
	ReferenceImages [][]byte `json:"-"`

	// Language is the output language code (e.g. "en", "ja", "zh").
	Language string `json:"language,omitempty"`

	// AspectRatio is the requested image aspect ratio (e.g. "16:9").
	AspectRatio string `json:"aspect_ratio,omitempty"`

	// Resolution is the requested image resolution (e.g. "1920x1080").
	Resolution string `json:"resolution,omitempty"`

	// ThinkingBudget caps the model's reasoning tokens for text calls.
	// Zero leaves the provider default in place.
	ThinkingBudget int32 `json:"thinking_budget,omitempty"`
}

// WorkItem is one independent unit of work within a job. Identity ties
// the item to the business artifact it mutates (e.g. a page ID); it is
// used for idempotent artifact writes, not job identity. Items are
// created fresh for each submission and discarded after execution.
//
// MaxAttempts overrides the job's retry budget for this item when
// positive; zero defers to the job policy.
type WorkItem struct {
	Identity    string      `json:"identity"`
	Payload     ItemPayload `json:"payload"`
	MaxAttempts int         `json:"max_attempts,omitempty"`
}

// NewWorkItem creates a work item for the given business identity,
// deferring to the job's retry policy.
func NewWorkItem(identity string, payload ItemPayload) (WorkItem, error) {
	item := WorkItem{
		Identity: identity,
		Payload:  payload,
	}

	if err := item.Validate(); err != nil {
		return WorkItem{}, err
	}

	return item, nil
}

// Validate checks that the work item data is valid.
func (w WorkItem) Validate() error {
	if w.Identity == "" {
		return ErrEmptyWorkItemIdentity
	}
	if w.MaxAttempts < 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}
