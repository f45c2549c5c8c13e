package venue

import (
	"strings"

	"golang.org/x/text/cases"

	"scout/internal/modules/intent"
	"scout/internal/types"
)

// Radius is the (exact, nearby) pair of a granularity class, in kilometres.
type Radius struct {
	ExactKm  float64 `mapstructure:"exact_km" json:"exactKm"`
	NearbyKm float64 `mapstructure:"nearby_km" json:"nearbyKm"`
}

// Radii holds the radius pair per distance-partitioned class.
type Radii struct {
	Street   Radius `mapstructure:"street"`
	Landmark Radius `mapstructure:"landmark"`
	Area     Radius `mapstructure:"area"`
}

// DefaultRadii widen from street to area.
var DefaultRadii = Radii{
	Street:   Radius{ExactKm: 0.3, NearbyKm: 1},
	Landmark: Radius{ExactKm: 0.5, NearbyKm: 2},
	Area:     Radius{ExactKm: 1.5, NearbyKm: 5},
}

// For returns the radius pair of g. CITY has none.
func (r Radii) For(g intent.Granularity) (Radius, bool) {
	switch g {
	case intent.GranularityStreet:
		return r.Street, true
	case intent.GranularityLandmark:
		return r.Landmark, true
	case intent.GranularityArea:
		return r.Area, true
	default:
		return Radius{}, false
	}
}

// ClassifyGranularity decides the class of a location reference. The
// intent's hint wins; otherwise the geocoder's place types decide, and
// anything unrecognised is treated as an area.
func ClassifyGranularity(hint intent.Granularity, placeTypes []string) intent.Granularity {
	if hint != intent.GranularityUnknown {
		return hint
	}
	has := func(want ...string) bool {
		for _, t := range placeTypes {
			for _, w := range want {
				if t == w {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("locality", "administrative_area_level_3", "postal_town", "administrative_area_level_2", "administrative_area_level_1", "country"):
		return intent.GranularityCity
	case has("route", "street_address", "intersection", "premise"):
		return intent.GranularityStreet
	case has("point_of_interest", "establishment", "transit_station", "train_station", "subway_station", "park", "airport"):
		return intent.GranularityLandmark
	default:
		return intent.GranularityArea
	}
}

// Grouping is the outcome of the grouping stage.
type Grouping struct {
	Granularity intent.Granularity `json:"granularity"`
	Groups      []Group            `json:"groups"`
	// Dropped counts results beyond the nearby radius. They stay in the
	// result list and its totals but are in no group.
	Dropped int `json:"dropped,omitempty"`
}

// GroupByGranularity partitions ranked venues. CITY yields one group holding
// every venue regardless of distance; the other classes split into exact and
// nearby by distance from origin. Empty groups are omitted. Order within a
// group follows the input order.
func GroupByGranularity(g intent.Granularity, origin *types.Point, venues []Venue, radii Radii) Grouping {
	out := Grouping{Granularity: g}
	r, ok := radii.For(g)
	if g == intent.GranularityCity || !ok || origin == nil {
		if len(venues) > 0 {
			out.Groups = []Group{{Name: GroupAll, Venues: append([]Venue(nil), venues...)}}
		}
		return out
	}

	var exact, nearby []Venue
	for _, v := range withDistances(venues, *origin) {
		switch {
		case v.DistanceKm <= r.ExactKm:
			exact = append(exact, v)
		case v.DistanceKm <= r.NearbyKm:
			nearby = append(nearby, v)
		default:
			out.Dropped++
		}
	}
	if len(exact) > 0 {
		out.Groups = append(out.Groups, Group{Name: GroupExact, RadiusKm: r.ExactKm, Venues: exact})
	}
	if len(nearby) > 0 {
		out.Groups = append(out.Groups, Group{Name: GroupNearby, RadiusKm: r.NearbyKm, Venues: nearby})
	}
	return out
}

// FilterToCity keeps venues whose address mentions city. When no venue
// matches (addresses written in another script, for example) the input is
// returned unchanged rather than emptying the result set.
func FilterToCity(venues []Venue, city string) []Venue {
	city = strings.TrimSpace(city)
	if city == "" {
		return venues
	}
	fold := cases.Fold()
	needle := fold.String(city)
	kept := keep(venues, func(v Venue) bool {
		return strings.Contains(fold.String(v.Address), needle)
	})
	if len(kept) == 0 {
		return venues
	}
	return kept
}
