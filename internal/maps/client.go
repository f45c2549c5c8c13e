package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"
)

var (
	// ErrQuotaExceeded is returned when the local QPS guard or the upstream
	// API refuses a call for quota reasons.
	ErrQuotaExceeded = errors.New("maps: quota exceeded")
	// ErrProvider wraps every other upstream failure.
	ErrProvider = errors.New("maps: provider error")
)

// ClientOptions configure the shared Google Maps client.
type ClientOptions struct {
	APIKey string
	// BaseURL overrides the API host; used by tests.
	BaseURL string
	// QPS and Burst bound outbound calls per process. Zero QPS disables the guard.
	QPS   float64
	Burst int
}

// NewClient creates the Google Maps client and its QPS guard.
func NewClient(opts ClientOptions) (*maps.Client, *rate.Limiter, error) {
	clientOpts := []maps.ClientOption{maps.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.QPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.QPS) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), burst)
	}
	return client, limiter, nil
}

// waitToken waits for the QPS guard. A wait that cannot finish before the
// caller's deadline counts as a quota refusal.
func waitToken(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: local rate limit: %v", ErrQuotaExceeded, err)
	}
	return nil
}

// classifyError maps a client error onto the package's sentinels.
func classifyError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "OVER_QUERY_LIMIT") || strings.Contains(msg, "OVER_DAILY_LIMIT") {
		return fmt.Errorf("%w: %s: %v", ErrQuotaExceeded, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
}
