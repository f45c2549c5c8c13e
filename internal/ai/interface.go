package ai

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned when the model provider refuses a call for quota reasons.
	ErrQuotaExceeded = errors.New("ai: quota exceeded")
	// ErrEmptyResponse is returned when the model produced no usable candidate.
	ErrEmptyResponse = errors.New("ai: empty response")
)

// IntentExtractor turns free text into a structured intent. One call per request.
type IntentExtractor interface {
	// ExtractIntent parses query. currentContext carries session hints such as
	// "ui_language", "last_location" and "current_time".
	ExtractIntent(ctx context.Context, query string, currentContext map[string]string) (*IntentResult, error)
}

// Narrator produces the short helper message. outputSchema is the JSON schema
// the reply must satisfy; implementations pass it to the model when they can.
type Narrator interface {
	Complete(ctx context.Context, prompt NarrationPrompt, outputSchema map[string]any) (*AssistantOutput, error)
}
