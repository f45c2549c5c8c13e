// README: Coalesces concurrent identical calls into one upstream call.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"scout/internal/metrics"
)

// ErrWaitCanceled is returned to a caller whose context ended while it was
// waiting on a shared call. The call itself keeps running for the others.
var ErrWaitCanceled = errors.New("dedup: wait canceled")

// Stats is a snapshot of a group's counters.
type Stats struct {
	Name     string `json:"name"`
	Calls    uint64 `json:"calls"`
	Shared   uint64 `json:"shared"`
	InFlight int64  `json:"inFlight"`
}

// Group deduplicates calls producing T.
type Group[T any] struct {
	name     string
	sf       singleflight.Group
	calls    atomic.Uint64
	shared   atomic.Uint64
	inFlight atomic.Int64
}

// New creates a named group.
func New[T any](name string) *Group[T] {
	return &Group[T]{name: name}
}

// Do runs producer for key unless an identical call is already in flight,
// in which case it waits for that call's result. The producer runs on a
// context detached from any single caller's cancellation. shared reports
// whether the result went to more than one caller.
func (g *Group[T]) Do(ctx context.Context, key string, producer func(context.Context) (T, error)) (v T, shared bool, err error) {
	g.calls.Add(1)
	detached := context.WithoutCancel(ctx)

	ch := g.sf.DoChan(key, func() (any, error) {
		g.inFlight.Add(1)
		defer g.inFlight.Add(-1)
		return producer(detached)
	})

	select {
	case res := <-ch:
		if res.Shared {
			g.shared.Add(1)
			metrics.DedupShared.WithLabelValues(g.name).Inc()
		}
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		out, _ := res.Val.(T)
		return out, res.Shared, nil
	case <-ctx.Done():
		return v, false, fmt.Errorf("%w: %w", ErrWaitCanceled, ctx.Err())
	}
}

// Forget drops key so the next call starts a fresh producer.
func (g *Group[T]) Forget(key string) { g.sf.Forget(key) }

// Stats returns a snapshot of the counters.
func (g *Group[T]) Stats() Stats {
	return Stats{Name: g.name, Calls: g.calls.Load(), Shared: g.shared.Load(), InFlight: g.inFlight.Load()}
}

// Key canonicalises the inputs of a call into a fixed-length identity.
// Parts are Unicode-normalised, case-folded and whitespace-collapsed, so
// "Ramen  in TOKYO" and "ramen in tokyo" share a key; part boundaries are
// kept so ("ab", "c") and ("a", "bc") do not.
func Key(parts ...string) string {
	fold := cases.Fold()
	h := sha256.New()
	for _, p := range parts {
		p = norm.NFC.String(p)
		p = fold.String(p)
		p = strings.Join(strings.Fields(p), " ")
		fmt.Fprintf(h, "%d:%s|", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
