// README: Parsed search intent. The open-now flag is a three-valued enum, never a bool.
package intent

import (
	"fmt"
	"strings"
)

// OpenNow is the tri-state open/closed-now constraint carried by an intent.
// The zero value is OpenNowUnset, which means "no constraint".
type OpenNow int8

const (
	OpenNowUnset OpenNow = iota
	OpenNowRequire
	OpenNowExclude
)

// OpenNowFromPtr maps the nullable wire form onto the enum: nil stays unset.
func OpenNowFromPtr(b *bool) OpenNow {
	switch {
	case b == nil:
		return OpenNowUnset
	case *b:
		return OpenNowRequire
	default:
		return OpenNowExclude
	}
}

func (o OpenNow) String() string {
	switch o {
	case OpenNowRequire:
		return "require"
	case OpenNowExclude:
		return "exclude"
	default:
		return "unset"
	}
}

// IsSet reports whether the intent carries any open/closed constraint.
func (o OpenNow) IsSet() bool { return o != OpenNowUnset }

func (o OpenNow) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *OpenNow) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "unset":
		*o = OpenNowUnset
	case "require", "open":
		*o = OpenNowRequire
	case "exclude", "closed":
		*o = OpenNowExclude
	default:
		return fmt.Errorf("intent: unknown open-now value %q", string(b))
	}
	return nil
}

// UnmarshalJSON accepts true/false (require/exclude), null (unset) and the
// textual forms.
func (o *OpenNow) UnmarshalJSON(b []byte) error {
	switch s := strings.TrimSpace(string(b)); s {
	case "null":
		*o = OpenNowUnset
		return nil
	case "true":
		*o = OpenNowRequire
		return nil
	case "false":
		*o = OpenNowExclude
		return nil
	default:
		return o.UnmarshalText([]byte(strings.Trim(s, `"`)))
	}
}

// Granularity is the geographic specificity of a location reference.
type Granularity string

const (
	GranularityUnknown  Granularity = ""
	GranularityCity     Granularity = "CITY"
	GranularityStreet   Granularity = "STREET"
	GranularityLandmark Granularity = "LANDMARK"
	GranularityArea     Granularity = "AREA"
)

// ParseGranularity accepts the model's loose spelling.
func ParseGranularity(s string) Granularity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CITY", "TOWN", "LOCALITY":
		return GranularityCity
	case "STREET", "ROAD", "ADDRESS":
		return GranularityStreet
	case "LANDMARK", "POI", "VENUE":
		return GranularityLandmark
	case "AREA", "NEIGHBORHOOD", "NEIGHBOURHOOD", "DISTRICT":
		return GranularityArea
	default:
		return GranularityUnknown
	}
}

// Filters is the constraint set of a search. PriceMax and MinRating use zero
// for "no constraint"; OpenNow keeps its own unset state.
type Filters struct {
	OpenNow   OpenNow `json:"openNow"`
	PriceMax  int     `json:"priceMax,omitempty"`
	MinRating float64 `json:"minRating,omitempty"`
	Delivery  bool    `json:"delivery,omitempty"`
}

// Active reports whether any constraint is in effect.
func (f Filters) Active() bool {
	return f.OpenNow.IsSet() || f.PriceMax > 0 || f.MinRating > 0 || f.Delivery
}

// Key is a stable textual form used in cache and dedup keys.
func (f Filters) Key() string {
	return fmt.Sprintf("open=%s|price=%d|rating=%.1f|delivery=%t", f.OpenNow, f.PriceMax, f.MinRating, f.Delivery)
}

// Overrides are caller-supplied filters. Nil fields leave the parsed value alone.
type Overrides struct {
	OpenNow   *OpenNow `json:"openNow,omitempty"`
	PriceMax  *int     `json:"priceMax,omitempty"`
	MinRating *float64 `json:"minRating,omitempty"`
	Delivery  *bool    `json:"delivery,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// Parsed is the structured form of a free-text query. It is built once per
// request and only read afterwards.
type Parsed struct {
	Terms              []string    `json:"terms"`
	Category           string      `json:"category,omitempty"`
	LocationText       string      `json:"locationText,omitempty"`
	NearMe             bool        `json:"nearMe,omitempty"`
	Filters            Filters     `json:"filters"`
	Language           string      `json:"language,omitempty"`
	Confidence         float64     `json:"confidence"`
	Granularity        Granularity `json:"granularity,omitempty"`
	AmbiguousTerms     []string    `json:"ambiguousTerms,omitempty"`
	LocationCandidates []string    `json:"locationCandidates,omitempty"`
	Fallback           bool        `json:"fallback,omitempty"`
}

// HasLocation reports whether the query names a place or asks for "near me".
func (p Parsed) HasLocation() bool {
	return p.LocationText != "" || p.NearMe
}

// SearchText is the provider query string built from the category terms.
func (p Parsed) SearchText() string {
	if len(p.Terms) > 0 {
		return strings.Join(p.Terms, " ")
	}
	return p.Category
}

// Apply returns a copy with the caller's explicit filters layered on top.
func (p Parsed) Apply(o Overrides) Parsed {
	out := p
	out.Terms = append([]string(nil), p.Terms...)
	out.AmbiguousTerms = append([]string(nil), p.AmbiguousTerms...)
	out.LocationCandidates = append([]string(nil), p.LocationCandidates...)
	if o.OpenNow != nil {
		out.Filters.OpenNow = *o.OpenNow
	}
	if o.PriceMax != nil {
		out.Filters.PriceMax = *o.PriceMax
	}
	if o.MinRating != nil {
		out.Filters.MinRating = *o.MinRating
	}
	if o.Delivery != nil {
		out.Filters.Delivery = *o.Delivery
	}
	return out
}
