// README: Daily search allowance per authenticated user, backed by Postgres.
package quota

import (
	"context"
	"errors"
)

type tokenStore interface {
	UseToken(ctx context.Context, uid string) error
	EnsureUser(ctx context.Context, uid string) error
}

// Service orchestrates search-quota logic.
type Service struct {
	store tokenStore
}

// NewService creates a Service backed by the given Store. A nil store
// disables the quota.
func NewService(store *Store) *Service {
	if store == nil {
		return &Service{}
	}
	return &Service{store: store}
}

// Enabled reports whether searches are metered.
func (s *Service) Enabled() bool { return s != nil && s.store != nil }

// Consume deducts one search from uid's daily allowance. Anonymous callers
// and a disabled service are not metered.
// Returns ErrInsufficientTokens when today's allowance is exhausted.
func (s *Service) Consume(ctx context.Context, uid string) error {
	if !s.Enabled() || uid == "" {
		return nil
	}
	err := s.store.UseToken(ctx, uid)
	if !errors.Is(err, ErrInsufficientTokens) {
		return err
	}

	// Row may be missing: try to create it, then retry the deduction once.
	if initErr := s.store.EnsureUser(ctx, uid); initErr != nil {
		return initErr
	}
	return s.store.UseToken(ctx, uid)
}
