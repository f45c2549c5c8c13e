// README: Venue results, the tri-state open-now value they carry, and result groups.
package venue

import (
	"fmt"
	"strings"

	"scout/internal/types"
)

// OpenState is the provider's open-now report for one venue. The zero value
// is OpenStateUnknown: the provider did not return opening hours.
type OpenState int8

const (
	OpenStateUnknown OpenState = iota
	OpenStateOpen
	OpenStateClosed
)

// OpenStateFromPtr maps the provider's nullable flag.
func OpenStateFromPtr(b *bool) OpenState {
	switch {
	case b == nil:
		return OpenStateUnknown
	case *b:
		return OpenStateOpen
	default:
		return OpenStateClosed
	}
}

func (s OpenState) String() string {
	switch s {
	case OpenStateOpen:
		return "open"
	case OpenStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s OpenState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OpenState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*s = OpenStateOpen
	case "closed":
		*s = OpenStateClosed
	case "unknown", "":
		*s = OpenStateUnknown
	default:
		return fmt.Errorf("venue: unknown open state %q", string(b))
	}
	return nil
}

// Venue is one provider result, enriched by ranking and grouping.
type Venue struct {
	PlaceID     string      `json:"placeId"`
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	Location    types.Point `json:"location"`
	Rating      float64     `json:"rating,omitempty"`
	RatingCount int         `json:"ratingCount,omitempty"`
	// PriceLevel is 1-4; 0 means the provider did not report one.
	PriceLevel int       `json:"priceLevel,omitempty"`
	OpenNow    OpenState `json:"openNow"`
	Types      []string  `json:"types,omitempty"`
	Delivery   bool      `json:"delivery,omitempty"`

	DistanceKm float64 `json:"distanceKm,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// HasType reports whether the provider tagged the venue with placeType.
func (v Venue) HasType(placeType string) bool {
	for _, t := range v.Types {
		if strings.EqualFold(t, placeType) {
			return true
		}
	}
	return false
}

// OpenNowSummary counts open states over an unfiltered result set.
// Open+Closed+Unknown always equals Total.
type OpenNowSummary struct {
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Unknown int `json:"unknown"`
	Total   int `json:"total"`
}

// Summarize counts venues by open state.
func Summarize(venues []Venue) OpenNowSummary {
	var s OpenNowSummary
	for _, v := range venues {
		switch v.OpenNow {
		case OpenStateOpen:
			s.Open++
		case OpenStateClosed:
			s.Closed++
		default:
			s.Unknown++
		}
	}
	s.Total = len(venues)
	return s
}

// Group names.
const (
	GroupAll    = "all"
	GroupExact  = "exact"
	GroupNearby = "nearby"
)

// Group is a named, ordered bucket of results.
type Group struct {
	Name     string  `json:"name"`
	RadiusKm float64 `json:"radiusKm,omitempty"`
	Venues   []Venue `json:"venues"`
}

// AnyDelivery reports whether at least one venue offers delivery.
func AnyDelivery(venues []Venue) bool {
	for _, v := range venues {
		if v.Delivery {
			return true
		}
	}
	return false
}

// AnyPriced reports whether at least one venue carries a price level.
func AnyPriced(venues []Venue) bool {
	for _, v := range venues {
		if v.PriceLevel > 0 {
			return true
		}
	}
	return false
}

// AnyRated reports whether at least one venue carries a rating.
func AnyRated(venues []Venue) bool {
	for _, v := range venues {
		if v.Rating > 0 {
			return true
		}
	}
	return false
}
