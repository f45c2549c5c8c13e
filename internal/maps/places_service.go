package maps

import (
	"context"
	"strings"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"scout/internal/modules/intent"
	"scout/internal/modules/venue"
	"scout/internal/types"
)

// SearchRequest is one places text search.
type SearchRequest struct {
	Query        string
	Location     *types.Point
	RadiusMeters uint
	Language     string
	// OpenNow is the intent's tri-state flag. Only Require reaches the
	// provider; it has no way to ask for closed venues.
	OpenNow  intent.OpenNow
	PriceMax int
}

// RequestObserver sees every outbound text search request.
type RequestObserver func(*maps.TextSearchRequest)

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client   *maps.Client
	limiter  *rate.Limiter
	region   string
	observer RequestObserver
}

// NewPlacesService creates a PlacesService on a shared client.
func NewPlacesService(client *maps.Client, limiter *rate.Limiter, region string) *PlacesService {
	return &PlacesService{client: client, limiter: limiter, region: strings.ToLower(region)}
}

// Observe installs a hook called with each outbound request.
func (s *PlacesService) Observe(o RequestObserver) { s.observer = o }

// BuildTextSearchRequest maps a SearchRequest onto the API request.
func (s *PlacesService) BuildTextSearchRequest(req SearchRequest) *maps.TextSearchRequest {
	r := &maps.TextSearchRequest{
		Query:    req.Query,
		Language: req.Language,
		Region:   s.region,
		// Exclude is applied locally after the fetch.
		OpenNow: req.OpenNow == intent.OpenNowRequire,
	}
	if req.Location != nil {
		r.Location = &maps.LatLng{Lat: req.Location.Lat, Lng: req.Location.Lng}
		r.Radius = req.RadiusMeters
	}
	if req.PriceMax > 0 {
		r.MaxPrice = priceLevel(req.PriceMax)
	}
	return r
}

// Search runs a text search and converts the results.
func (s *PlacesService) Search(ctx context.Context, req SearchRequest) ([]venue.Venue, error) {
	if err := waitToken(ctx, s.limiter); err != nil {
		return nil, err
	}

	r := s.BuildTextSearchRequest(req)
	if s.observer != nil {
		s.observer(r)
	}

	resp, err := s.client.TextSearch(ctx, r)
	if err != nil {
		return nil, classifyError("places text search", err)
	}

	results := make([]venue.Venue, 0, len(resp.Results))
	for _, result := range resp.Results {
		// Permanently closed venues are never useful, whatever the filter.
		if result.PermanentlyClosed || result.BusinessStatus == "CLOSED_PERMANENTLY" {
			continue
		}
		v := venue.Venue{
			PlaceID:     result.PlaceID,
			Name:        result.Name,
			Address:     result.FormattedAddress,
			Location:    types.Point{Lat: result.Geometry.Location.Lat, Lng: result.Geometry.Location.Lng},
			Rating:      float64(result.Rating),
			RatingCount: result.UserRatingsTotal,
			PriceLevel:  result.PriceLevel,
			Types:       result.Types,
		}
		if result.OpeningHours != nil {
			v.OpenNow = venue.OpenStateFromPtr(result.OpeningHours.OpenNow)
		}
		v.Delivery = v.HasType("meal_delivery")
		results = append(results, v)
	}
	return results, nil
}

func priceLevel(n int) maps.PriceLevel {
	switch {
	case n <= 0:
		return maps.PriceLevelFree
	case n == 1:
		return maps.PriceLevelInexpensive
	case n == 2:
		return maps.PriceLevelModerate
	case n == 3:
		return maps.PriceLevelExpensive
	default:
		return maps.PriceLevelVeryExpensive
	}
}
