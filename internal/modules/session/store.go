// README: Session context (UI language, last location, region) kept in a Redis hash per session id.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"scout/internal/types"
)

const (
	fieldUILanguage   = "uiLanguage"
	fieldLastLocation = "lastLocation"
	fieldRegion       = "region"

	// DefaultTTL is how long an idle session context is kept.
	DefaultTTL = 30 * 24 * time.Hour
)

// Context is what the search core reads from a session.
type Context struct {
	UILanguage   string       `json:"uiLanguage,omitempty"`
	LastLocation *types.Point `json:"lastLocation,omitempty"`
	Region       string       `json:"region,omitempty"`
}

// Hints flattens c for the intent prompt.
func (c Context) Hints() map[string]string {
	out := map[string]string{}
	for field, v := range c.fields() {
		out[hintKeys[field]] = v
	}
	return out
}

var hintKeys = map[string]string{
	fieldUILanguage:   "ui_language",
	fieldLastLocation: "last_location",
	fieldRegion:       "region",
}

func (c Context) fields() map[string]string {
	out := map[string]string{}
	if c.UILanguage != "" {
		out[fieldUILanguage] = c.UILanguage
	}
	if c.Region != "" {
		out[fieldRegion] = c.Region
	}
	if c.LastLocation != nil {
		out[fieldLastLocation] = formatPoint(*c.LastLocation)
	}
	return out
}

// Store reads and writes session contexts. A Store with a nil client is a
// no-op: lookups return an empty Context.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: "scout:session:", ttl: ttl}
}

// Lookup returns the stored context for id. Unknown ids give an empty Context.
func (s *Store) Lookup(ctx context.Context, id string) (Context, error) {
	if s == nil || s.client == nil || id == "" {
		return Context{}, nil
	}
	fields, err := s.client.HGetAll(ctx, s.prefix+id).Result()
	if err != nil {
		return Context{}, fmt.Errorf("session lookup: %w", err)
	}
	c := Context{
		UILanguage: fields[fieldUILanguage],
		Region:     fields[fieldRegion],
	}
	if raw := fields[fieldLastLocation]; raw != "" {
		if p, ok := parsePoint(raw); ok {
			c.LastLocation = &p
		}
	}
	return c, nil
}

// Remember merges the non-empty fields of c into the session and refreshes its TTL.
func (s *Store) Remember(ctx context.Context, id string, c Context) error {
	if s == nil || s.client == nil || id == "" {
		return nil
	}
	fields := c.fields()
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	key := s.prefix + id
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, values)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session remember: %w", err)
	}
	return nil
}

func formatPoint(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

func parsePoint(s string) (types.Point, bool) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return types.Point{}, false
	}
	la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	ln, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err1 != nil || err2 != nil {
		return types.Point{}, false
	}
	return types.Point{Lat: la, Lng: ln}, true
}
