package entity

import (
	"fmt"
)

// Conversation categories the generation service must pick from.
const (
	CategoryActionRequired = "action_required"
	CategoryImportant      = "important"
	CategoryBilling        = "billing"
	CategorySocial         = "social"
	CategoryOther          = "other"
)

// MaxHighlights bounds the highlight list in a generated report.
const MaxHighlights = 7

// GenerationRequest is the composed payload for the generation service:
// system instructions, the serialized conversations, and the schema the
// response must satisfy.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Schema       string
}

// ConversationSummary is the per-thread part of a generation result.
type ConversationSummary struct {
	ThreadID string `json:"thread_id"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
	NextStep string `json:"next_step"`
}

// GenerationResult is the validated structured output of the generation
// service.
type GenerationResult struct {
	Highlights    []string              `json:"highlights"`
	Todos         []string              `json:"todos"`
	Conversations []ConversationSummary `json:"conversations"`
}

// EmptyGenerationResult returns the placeholder result persisted for a day
// with no messages, so "ran with nothing to say" is never ambiguous with
// "not yet run".
func EmptyGenerationResult() *GenerationResult {
	return &GenerationResult{
		Highlights:    []string{},
		Todos:         []string{},
		Conversations: []ConversationSummary{},
	}
}

func validCategory(c string) bool {
	switch c {
	case CategoryActionRequired, CategoryImportant, CategoryBilling, CategorySocial, CategoryOther:
		return true
	}
	return false
}

// Validate checks the result against the required schema. Missing or
// malformed fields are errors, never silently defaulted. The highlight list
// is clamped to MaxHighlights.
func (r *GenerationResult) Validate() error {
	if r.Highlights == nil {
		return fmt.Errorf("missing required field: highlights")
	}
	if r.Todos == nil {
		return fmt.Errorf("missing required field: todos")
	}
	if len(r.Highlights) > MaxHighlights {
		r.Highlights = r.Highlights[:MaxHighlights]
	}
	for i, c := range r.Conversations {
		if c.ThreadID == "" {
			return fmt.Errorf("conversation %d: missing thread_id", i)
		}
		if !validCategory(c.Category) {
			return fmt.Errorf("conversation %d: unknown category %q", i, c.Category)
		}
		if c.Summary == "" {
			return fmt.Errorf("conversation %d: missing summary", i)
		}
		if c.NextStep == "" {
			return fmt.Errorf("conversation %d: missing next_step", i)
		}
	}
	return nil
}

// Failure classes for generation calls.
const (
	FailureRateLimited = "RATE_LIMITED"
	FailureServer      = "SERVER_ERROR"
	FailureTimeout     = "TIMEOUT"
	FailureAuth        = "AUTH_FAILED"
	FailureBadRequest  = "BAD_REQUEST"
	FailureValidation  = "VALIDATION_FAILED"
)

// GenerationError is a classified failure from the generation service.
// Status is zero when the failure was not an HTTP response (e.g. timeout).
type GenerationError struct {
	Class    string
	Status   int
	Attempts int
	Message  string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s, status=%d, attempts=%d): %s",
		e.Class, e.Status, e.Attempts, e.Message)
}

// Retriable reports whether this failure class may be retried with backoff.
func (e *GenerationError) Retriable() bool {
	switch e.Class {
	case FailureRateLimited, FailureServer, FailureTimeout:
		return true
	}
	return false
}
