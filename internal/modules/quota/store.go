package quota

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store handles search_quota persistence.
type Store struct {
	db    *pgxpool.Pool
	daily int
	now   func() time.Time
}

// NewStore returns a Store backed by the given connection pool.
func NewStore(db *pgxpool.Pool, daily int) *Store {
	if daily <= 0 {
		daily = DefaultDaily
	}
	return &Store{db: db, daily: daily, now: time.Now}
}

// UseToken atomically checks the daily allowance and deducts one search.
// It resets the counter to the allowance when last_reset_day is behind today.
// Returns ErrInsufficientTokens when 0 rows are updated (allowance exhausted or user absent).
func (s *Store) UseToken(ctx context.Context, uid string) error {
	today := s.now().UTC().Format(dayLayout)

	tag, err := s.db.Exec(ctx, `
		UPDATE search_quota SET
			tokens_remaining = CASE WHEN last_reset_day != $1 THEN $2 - 1 ELSE tokens_remaining - 1 END,
			last_reset_day = $1
		WHERE uid = $3 AND (last_reset_day < $1 OR tokens_remaining > 0)
	`, today, s.daily, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientTokens
	}
	return nil
}

// EnsureUser inserts a search_quota row for uid with a full allowance.
// An existing row is left untouched.
func (s *Store) EnsureUser(ctx context.Context, uid string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO search_quota (uid, tokens_remaining, last_reset_day)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO NOTHING
	`, uid, s.daily, s.now().UTC().Format(dayLayout))
	return err
}

// Remaining reports today's remaining searches for uid.
func (s *Store) Remaining(ctx context.Context, uid string) (int, error) {
	var remaining int
	var day string
	err := s.db.QueryRow(ctx, `SELECT tokens_remaining, last_reset_day FROM search_quota WHERE uid = $1`, uid).Scan(&remaining, &day)
	if err != nil {
		return 0, err
	}
	if day != s.now().UTC().Format(dayLayout) {
		return s.daily, nil
	}
	return remaining, nil
}
