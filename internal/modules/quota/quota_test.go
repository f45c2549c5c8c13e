// README: Quota module tests (daily reset, exhaustion and lazy user creation).
package quota

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	remaining map[string]int
	calls     []string
}

func (f *fakeStore) UseToken(_ context.Context, uid string) error {
	f.calls = append(f.calls, "use:"+uid)
	n, ok := f.remaining[uid]
	if !ok || n == 0 {
		return ErrInsufficientTokens
	}
	f.remaining[uid] = n - 1
	return nil
}

func (f *fakeStore) EnsureUser(_ context.Context, uid string) error {
	f.calls = append(f.calls, "ensure:"+uid)
	if _, ok := f.remaining[uid]; !ok {
		f.remaining[uid] = 2
	}
	return nil
}

func TestService_Consume(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{remaining: map[string]int{}}
	svc := &Service{store: store}

	require.NoError(t, svc.Consume(ctx, "u1"))
	assert.Equal(t, []string{"use:u1", "ensure:u1", "use:u1"}, store.calls, "a new user is created then charged")
	require.NoError(t, svc.Consume(ctx, "u1"))
	assert.ErrorIs(t, svc.Consume(ctx, "u1"), ErrInsufficientTokens)
}

func TestService_AnonymousAndDisabled(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{remaining: map[string]int{}}
	svc := &Service{store: store}
	require.NoError(t, svc.Consume(ctx, ""))
	assert.Empty(t, store.calls)

	disabled := NewService(nil)
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.Consume(ctx, "u1"))
}

type failingStore struct{ err error }

func (f failingStore) UseToken(context.Context, string) error   { return f.err }
func (f failingStore) EnsureUser(context.Context, string) error { return nil }

func TestService_StoreErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection reset")
	err := (&Service{store: failingStore{err: boom}}).Consume(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}

// TestUseTokenCrossDayReset verifies that a user with 0 searches left from a
// previous day is reset and the request succeeds.
func TestUseTokenCrossDayReset(t *testing.T) {
	svc, store, db := setupTestService(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, "INSERT INTO search_quota VALUES ('user_reset', 0, '2000-01-01')")
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, "user_reset"))
	remaining, err := store.Remaining(ctx, "user_reset")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

// TestUseTokenInsufficientCheck verifies that a user with 0 searches today is blocked.
func TestUseTokenInsufficientCheck(t *testing.T) {
	svc, store, db := setupTestService(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, "INSERT INTO search_quota VALUES ('user_zero', 0, $1)", store.now().UTC().Format(dayLayout))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Consume(ctx, "user_zero"), ErrInsufficientTokens)
}

// TestUseTokenNewUser verifies that a user absent from the table is initialised on first call.
func TestUseTokenNewUser(t *testing.T) {
	svc, store, _ := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Consume(ctx, "user_new"))
	remaining, err := store.Remaining(ctx, "user_new")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

// setupTestService creates a postgres-backed Service with a daily allowance
// of 5. It skips the test when SCOUT_TEST_DSN is not set.
func setupTestService(t *testing.T) (*Service, *Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("SCOUT_TEST_DSN")
	if dsn == "" {
		t.Skip("SCOUT_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, applyMigrations(ctx, db))
	_, err = db.Exec(ctx, "TRUNCATE TABLE search_quota")
	require.NoError(t, err)

	store := NewStore(db, 5)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	return NewService(store), store, db
}

func applyMigrations(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	paths, err := filepath.Glob(filepath.Join(root, "migrations", "*.sql"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, stmt := range splitSQL(stripSQLComments(string(content))) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
