// README: Assistant message. One model call, then schema and script checks; any failure uses fixed copy.
package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"scout/internal/ai"
	"scout/internal/metrics"
	"scout/internal/modules/language"
	"scout/internal/modules/mode"
)

// Source tells where the visible message came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Fallback causes, reported in metrics and logs.
const (
	causeNone     = "none"
	causeNoModel  = "no_model"
	causeTimeout  = "timeout"
	causeError    = "error"
	causeSchema   = "schema"
	causeLanguage = "language"
	causeShed     = "shed"
)

const (
	defaultTimeout   = 3 * time.Second
	defaultThreshold = 0.5
)

// OutputSchema is the JSON schema a model reply must satisfy.
var OutputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"message":  map[string]any{"type": "string", "minLength": 1, "maxLength": 400},
		"question": map[string]any{"type": "string", "maxLength": 200},
	},
	"required":             []any{"message"},
	"additionalProperties": false,
}

// Context is the small structured input of one narration.
type Context struct {
	Mode        mode.Mode   `json:"mode"`
	Reason      mode.Reason `json:"reason"`
	Query       string      `json:"query"`
	Language    string      `json:"language"`
	ResultCount int         `json:"resultCount"`
	TopResult   string      `json:"topResult,omitempty"`
}

// Output is the assist payload of a response.
type Output struct {
	Message  string    `json:"message"`
	Question string    `json:"question,omitempty"`
	Mode     mode.Mode `json:"mode"`
	Source   Source    `json:"source"`
}

// Options tune the service.
type Options struct {
	Timeout time.Duration
	// ScriptThreshold is the share of letters that must be in the target
	// script for the model's text to be accepted.
	ScriptThreshold float64
}

// Service produces assistant messages.
type Service struct {
	narrator  ai.Narrator
	schema    *gojsonschema.Schema
	timeout   time.Duration
	threshold float64
	logger    *zap.Logger
}

// NewService compiles the output schema. A nil narrator always yields fallback copy.
func NewService(narrator ai.Narrator, opts Options, logger *zap.Logger) (*Service, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(OutputSchema))
	if err != nil {
		return nil, fmt.Errorf("compile narration schema: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ScriptThreshold <= 0 {
		opts.ScriptThreshold = defaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		narrator:  narrator,
		schema:    schema,
		timeout:   opts.Timeout,
		threshold: opts.ScriptThreshold,
		logger:    logger.Named("narration"),
	}, nil
}

// Narrate makes at most one model call. Whatever goes wrong with it, the
// returned message is in c.Language.
func (s *Service) Narrate(ctx context.Context, c Context) Output {
	if s.narrator == nil {
		return s.fallback(c, causeNoModel)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.narrator.Complete(callCtx, ai.NarrationPrompt{
		Mode:        string(c.Mode),
		Reason:      string(c.Reason),
		Query:       c.Query,
		Language:    c.Language,
		ResultCount: c.ResultCount,
		TopResult:   c.TopResult,
		Clarify:     c.Mode == mode.Clarify,
	}, OutputSchema)
	if err != nil {
		cause := causeError
		if errors.Is(err, context.DeadlineExceeded) {
			cause = causeTimeout
		}
		s.logger.Warn("narration call failed", zap.Error(err), zap.String("cause", cause))
		return s.fallback(c, cause)
	}
	if out == nil {
		return s.fallback(c, causeError)
	}

	if err := s.validate(*out); err != nil {
		s.logger.Warn("narration output rejected", zap.Error(err))
		return s.fallback(c, causeSchema)
	}

	message := strings.TrimSpace(out.Message)
	question := strings.TrimSpace(out.Question)
	if c.Mode == mode.Clarify && question == "" {
		_, question = Fallback(c.Mode, c.Reason, c.Language)
	}
	if c.Mode != mode.Clarify {
		question = ""
	}

	if !language.ScriptMatches(message, c.Language, s.threshold) ||
		(question != "" && !language.ScriptMatches(question, c.Language, s.threshold)) {
		s.logger.Info("narration language mismatch, using fallback",
			zap.String("language", c.Language),
			zap.Float64("ratio", language.ScriptRatio(message, language.ScriptFor(c.Language))),
		)
		return s.fallback(c, causeLanguage)
	}

	metrics.NarrationSource.WithLabelValues(string(SourceModel), causeNone).Inc()
	return Output{Message: message, Question: question, Mode: c.Mode, Source: SourceModel}
}

func (s *Service) validate(out ai.AssistantOutput) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(out))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("output validation failed: %v", errs)
	}
	return nil
}

// Static returns the fallback copy without calling the model. It is used
// when the request was shed before any external call was allowed.
func (s *Service) Static(c Context) Output {
	return s.fallback(c, causeShed)
}

func (s *Service) fallback(c Context, cause string) Output {
	metrics.NarrationSource.WithLabelValues(string(SourceFallback), cause).Inc()
	message, question := Fallback(c.Mode, c.Reason, c.Language)
	if c.Mode != mode.Clarify {
		question = ""
	}
	return Output{Message: message, Question: question, Mode: c.Mode, Source: SourceFallback}
}
