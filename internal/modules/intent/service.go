package intent

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"scout/internal/ai"
)

const defaultTimeout = 4 * time.Second

// Service wraps the single intent-extraction model call.
type Service struct {
	extractor ai.IntentExtractor
	timeout   time.Duration
	logger    *zap.Logger
}

// NewService creates a Service. A nil extractor makes every call use the heuristic.
func NewService(extractor ai.IntentExtractor, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{extractor: extractor, timeout: timeout, logger: logger.Named("intent")}
}

// Extract parses query. On timeout or model failure it returns the heuristic
// parse and a nil error; quota refusals return the heuristic parse together
// with an error wrapping ai.ErrQuotaExceeded so the caller can report it.
func (s *Service) Extract(ctx context.Context, query string, session map[string]string) (Parsed, error) {
	if s.extractor == nil {
		return Heuristic(query), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.extractor.ExtractIntent(callCtx, query, session)
	if err != nil {
		s.logger.Warn("intent extraction failed, using heuristic",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		)
		if errors.Is(err, ai.ErrQuotaExceeded) {
			return Heuristic(query), err
		}
		return Heuristic(query), nil
	}
	if raw == nil {
		return Heuristic(query), nil
	}

	parsed := FromResult(*raw)
	if len(parsed.Terms) == 0 && parsed.Category == "" && !parsed.HasLocation() {
		// Nothing usable came back; keep the model's language if it gave one.
		h := Heuristic(query)
		if parsed.Language != "" {
			h.Language = parsed.Language
		}
		return h, nil
	}
	return parsed, nil
}

// FromResult converts the model's wire form into a Parsed intent.
func FromResult(r ai.IntentResult) Parsed {
	p := Parsed{
		Category:    strings.ToLower(strings.TrimSpace(r.Category)),
		NearMe:      r.NearMe,
		Language:    strings.TrimSpace(r.Language),
		Confidence:  clamp01(r.Confidence),
		Granularity: ParseGranularity(r.Granularity),
		Filters: Filters{
			OpenNow: OpenNowFromPtr(r.OpenNow),
		},
	}
	for _, t := range r.Terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			p.Terms = appendUnique(p.Terms, t)
		}
	}
	if r.Location != nil {
		p.LocationText = strings.TrimSpace(*r.Location)
	}
	if r.PriceMax != nil && *r.PriceMax > 0 {
		p.Filters.PriceMax = min(*r.PriceMax, 4)
	}
	if r.MinRating != nil && *r.MinRating > 0 {
		p.Filters.MinRating = min(*r.MinRating, 5)
	}
	if r.Delivery != nil {
		p.Filters.Delivery = *r.Delivery
	}
	for _, t := range r.AmbiguousTerms {
		if t = strings.TrimSpace(t); t != "" {
			p.AmbiguousTerms = appendUnique(p.AmbiguousTerms, t)
		}
	}
	for _, c := range r.LocationCandidates {
		if c = strings.TrimSpace(c); c != "" {
			p.LocationCandidates = appendUnique(p.LocationCandidates, c)
		}
	}
	return p
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
