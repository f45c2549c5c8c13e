package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"scout/internal/modules/intent"
	"scout/internal/modules/venue"
	"scout/internal/types"
)

type fakeAPI struct {
	mu      sync.Mutex
	queries []url.Values
	body    string
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	body := f.body
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) last() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func newTestClient(t *testing.T, body string) (*fakeAPI, *maps.Client) {
	t.Helper()
	api := &fakeAPI{body: body}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)
	client, _, err := NewClient(ClientOptions{APIKey: "AIza-test", BaseURL: srv.URL})
	require.NoError(t, err)
	return api, client
}

const textSearchBody = `{
  "status": "OK",
  "results": [
    {"place_id": "a", "name": "Open Cafe", "formatted_address": "1 Main St",
     "geometry": {"location": {"lat": 25.03, "lng": 121.56}},
     "rating": 4.6, "user_ratings_total": 120, "price_level": 2,
     "types": ["cafe", "meal_delivery"], "opening_hours": {"open_now": true}},
    {"place_id": "b", "name": "Closed Bistro", "formatted_address": "2 Main St",
     "geometry": {"location": {"lat": 25.04, "lng": 121.57}},
     "rating": 4.1, "types": ["restaurant"], "opening_hours": {"open_now": false}},
    {"place_id": "c", "name": "Mystery Bar", "formatted_address": "3 Main St",
     "geometry": {"location": {"lat": 25.05, "lng": 121.58}}, "types": ["bar"]},
    {"place_id": "d", "name": "Gone Diner", "business_status": "CLOSED_PERMANENTLY",
     "geometry": {"location": {"lat": 25.06, "lng": 121.59}}, "types": ["restaurant"]}
  ]
}`

func TestBuildTextSearchRequest_OpenNowOnlyForRequire(t *testing.T) {
	s := NewPlacesService(nil, nil, "TW")
	cases := []struct {
		filter intent.OpenNow
		want   bool
	}{
		{intent.OpenNowUnset, false},
		{intent.OpenNowRequire, true},
		{intent.OpenNowExclude, false},
	}
	for _, tc := range cases {
		r := s.BuildTextSearchRequest(SearchRequest{Query: "ramen", OpenNow: tc.filter})
		assert.Equal(t, tc.want, r.OpenNow, tc.filter.String())
		assert.Equal(t, "tw", r.Region)
	}
}

func TestBuildTextSearchRequest_LocationAndPrice(t *testing.T) {
	s := NewPlacesService(nil, nil, "")
	r := s.BuildTextSearchRequest(SearchRequest{
		Query:        "sushi",
		Location:     &types.Point{Lat: 35.68, Lng: 139.76},
		RadiusMeters: 2000,
		PriceMax:     2,
	})
	require.NotNil(t, r.Location)
	assert.Equal(t, 35.68, r.Location.Lat)
	assert.Equal(t, uint(2000), r.Radius)
	assert.Equal(t, maps.PriceLevelModerate, r.MaxPrice)

	r = s.BuildTextSearchRequest(SearchRequest{Query: "sushi", RadiusMeters: 2000})
	assert.Nil(t, r.Location)
	assert.Zero(t, r.Radius)
}

func TestPlacesService_SearchConvertsResults(t *testing.T) {
	api, client := newTestClient(t, textSearchBody)
	s := NewPlacesService(client, nil, "")

	var observed []*maps.TextSearchRequest
	s.Observe(func(r *maps.TextSearchRequest) { observed = append(observed, r) })

	got, err := s.Search(context.Background(), SearchRequest{Query: "food", OpenNow: intent.OpenNowExclude})
	require.NoError(t, err)
	require.Len(t, got, 3, "permanently closed venues are dropped")

	assert.Equal(t, venue.OpenStateOpen, got[0].OpenNow)
	assert.True(t, got[0].Delivery)
	assert.Equal(t, 2, got[0].PriceLevel)
	assert.Equal(t, 120, got[0].RatingCount)
	assert.InDelta(t, 4.6, got[0].Rating, 1e-6)
	assert.Equal(t, venue.OpenStateClosed, got[1].OpenNow)
	assert.False(t, got[1].Delivery)
	assert.Equal(t, venue.OpenStateUnknown, got[2].OpenNow)

	require.Len(t, observed, 1)
	assert.False(t, observed[0].OpenNow)
	assert.Empty(t, api.last().Get("opennow"), "exclude is never sent upstream")
}

func TestPlacesService_RequireSendsOpenNow(t *testing.T) {
	api, client := newTestClient(t, `{"status":"OK","results":[]}`)
	s := NewPlacesService(client, nil, "")
	got, err := s.Search(context.Background(), SearchRequest{Query: "food", OpenNow: intent.OpenNowRequire})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "true", api.last().Get("opennow"))
}

func TestPlacesService_ErrorClassification(t *testing.T) {
	_, client := newTestClient(t, `{"status":"OVER_QUERY_LIMIT","error_message":"slow down"}`)
	_, err := NewPlacesService(client, nil, "").Search(context.Background(), SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, ErrProvider)

	_, client = newTestClient(t, `{"status":"REQUEST_DENIED","error_message":"bad key"}`)
	_, err = NewPlacesService(client, nil, "").Search(context.Background(), SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, ErrProvider)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}

func TestPlacesService_LocalRateLimit(t *testing.T) {
	_, client := newTestClient(t, `{"status":"OK","results":[]}`)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	s := NewPlacesService(client, limiter, "")

	_, err := s.Search(context.Background(), SearchRequest{Query: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Search(ctx, SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestGeocodeService_Resolve(t *testing.T) {
	api, client := newTestClient(t, `{
  "status": "OK",
  "results": [
    {"place_id": "g1", "formatted_address": "Shibuya, Tokyo, Japan", "partial_match": true,
     "types": ["sublocality", "political"],
     "geometry": {"location": {"lat": 35.66, "lng": 139.70}},
     "address_components": [
       {"long_name": "Shibuya", "short_name": "Shibuya", "types": ["sublocality", "political"]},
       {"long_name": "Tokyo", "short_name": "Tokyo", "types": ["locality", "political"]}
     ]}
  ]
}`)
	s := NewGeocodeService(client, nil, "JP", "ja")
	got, err := s.Resolve(context.Background(), "渋谷")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].PlaceID)
	assert.Equal(t, "Tokyo", got[0].Locality)
	assert.True(t, got[0].PartialMatch)
	assert.Equal(t, types.Point{Lat: 35.66, Lng: 139.70}, got[0].Location)
	assert.Equal(t, "jp", api.last().Get("region"))
	assert.Equal(t, "ja", api.last().Get("language"))
}

func TestGeocodeService_ZeroResults(t *testing.T) {
	_, client := newTestClient(t, `{"status":"ZERO_RESULTS","results":[]}`)
	got, err := NewGeocodeService(client, nil, "", "").Resolve(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGeocodeService_ProviderError(t *testing.T) {
	_, client := newTestClient(t, `{"status":"UNKNOWN_ERROR"}`)
	_, err := NewGeocodeService(client, nil, "", "").Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProvider)
}
