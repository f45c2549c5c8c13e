package maps

import (
	"context"
	"strings"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"scout/internal/types"
)

// GeoCandidate is one geocoder match for a location text.
type GeoCandidate struct {
	PlaceID          string      `json:"placeId"`
	Location         types.Point `json:"location"`
	FormattedAddress string      `json:"formattedAddress"`
	Types            []string    `json:"types"`
	PartialMatch     bool        `json:"partialMatch,omitempty"`
	// Locality is the city name from the address components, when present.
	Locality string `json:"locality,omitempty"`
}

// GeocodeService resolves location text through the Geocoding API.
type GeocodeService struct {
	client   *maps.Client
	limiter  *rate.Limiter
	region   string
	language string
}

// NewGeocodeService creates a GeocodeService. region biases results toward a
// country (ccTLD, e.g. "tw"); language sets the address language.
func NewGeocodeService(client *maps.Client, limiter *rate.Limiter, region, language string) *GeocodeService {
	return &GeocodeService{client: client, limiter: limiter, region: strings.ToLower(region), language: language}
}

// Resolve returns the geocoder's candidates for text, best first. No match
// is an empty slice and a nil error.
func (s *GeocodeService) Resolve(ctx context.Context, text string) ([]GeoCandidate, error) {
	if err := waitToken(ctx, s.limiter); err != nil {
		return nil, err
	}

	resp, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  text,
		Region:   s.region,
		Language: s.language,
	})
	if err != nil {
		return nil, classifyError("geocode", err)
	}

	out := make([]GeoCandidate, 0, len(resp))
	for _, r := range resp {
		c := GeoCandidate{
			PlaceID:          r.PlaceID,
			Location:         types.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
			FormattedAddress: r.FormattedAddress,
			Types:            r.Types,
			PartialMatch:     r.PartialMatch,
		}
		for _, comp := range r.AddressComponents {
			if hasString(comp.Types, "locality") || hasString(comp.Types, "postal_town") {
				c.Locality = comp.LongName
				break
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func hasString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
