package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scout/internal/config"
	"scout/internal/modules/mode"
	"scout/internal/modules/narration"
	"scout/internal/service"
)

const geocodeBody = `{"status":"OK","results":[
  {"place_id":"g1","formatted_address":"Shibuya, Tokyo, Japan","types":["sublocality","political"],
   "geometry":{"location":{"lat":35.6595,"lng":139.7005}}}]}`

const textSearchBody = `{"status":"OK","results":[
  {"place_id":"a","name":"Ichiran","formatted_address":"Shibuya, Tokyo","rating":4.4,"user_ratings_total":900,
   "geometry":{"location":{"lat":35.6600,"lng":139.7010}},"opening_hours":{"open_now":true}},
  {"place_id":"b","name":"Afuri","formatted_address":"Shibuya, Tokyo","rating":4.2,
   "geometry":{"location":{"lat":35.6620,"lng":139.7030}},"opening_hours":{"open_now":false}}]}`

type mapsStub struct {
	geocode atomic.Int32
	search  atomic.Int32
}

func (m *mapsStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(r.URL.Path, "geocode"):
		m.geocode.Add(1)
		_, _ = w.Write([]byte(geocodeBody))
	case strings.Contains(r.URL.Path, "textsearch"):
		m.search.Add(1)
		_, _ = w.Write([]byte(textSearchBody))
	default:
		http.NotFound(w, r)
	}
}

func testConfig(t *testing.T, mapsURL, redisAddr string) config.Config {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SCOUT_AI_GEMINI_KEY", "")
	t.Setenv("SCOUT_MAPS_API_KEY", "AIza-test")
	t.Setenv("SCOUT_MAPS_BASE_URL", mapsURL)
	t.Setenv("SCOUT_REDIS_ADDR", redisAddr)
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestBuild_EndToEndWithoutModel(t *testing.T) {
	stub := &mapsStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig(t, srv.URL, mr.Addr())

	app, err := Build(ctx, cfg, zaptest.NewLogger(t), Options{SkipDB: true, SkipAuth: true})
	require.NoError(t, err)
	defer app.Close()
	app.Start(ctx)
	assert.Nil(t, app.Verifier)

	q := service.Query{Text: "ramen in Shibuya", SessionID: "s1"}
	resp, err := app.Search.Search(ctx, q)
	require.NoError(t, err)

	assert.True(t, resp.Meta.IntentFallback, "no model key means a heuristic parse")
	assert.Equal(t, mode.Recovery, resp.Meta.Mode)
	assert.Equal(t, mode.ReasonLowConfidence, resp.Meta.FailureReason)
	require.Len(t, resp.Results, 2)
	require.NotNil(t, resp.Assist)
	assert.Equal(t, narration.SourceFallback, resp.Assist.Source)
	assert.Equal(t, int32(1), stub.geocode.Load())
	assert.Equal(t, int32(1), stub.search.Load())

	_, err = app.Search.Search(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stub.search.Load(), "repeat served from cache")

	var placesKeys int
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "scout:cache:places:") {
			placesKeys++
		}
	}
	assert.Equal(t, 1, placesKeys)
}

func TestBuild_SecondReplicaSharesRedisTier(t *testing.T) {
	stub := &mapsStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	ctx := context.Background()
	cfg := testConfig(t, srv.URL, mr.Addr())
	opts := Options{SkipDB: true, SkipAuth: true}

	first, err := Build(ctx, cfg, zaptest.NewLogger(t), opts)
	require.NoError(t, err)
	defer first.Close()
	second, err := Build(ctx, cfg, zaptest.NewLogger(t), opts)
	require.NoError(t, err)
	defer second.Close()

	q := service.Query{Text: "ramen in Shibuya"}
	a, err := first.Search.Search(ctx, q)
	require.NoError(t, err)
	b, err := second.Search.Search(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, int32(1), stub.geocode.Load())
	assert.Equal(t, int32(1), stub.search.Load())
	require.Len(t, b.Results, len(a.Results))
	for i := range a.Results {
		assert.Equal(t, a.Results[i].PlaceID, b.Results[i].PlaceID)
		assert.Equal(t, a.Results[i].OpenNow, b.Results[i].OpenNow)
	}
}

func TestBuild_RedisDownFallsBackToLocal(t *testing.T) {
	stub := &mapsStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t, srv.URL, addr)
	app, err := Build(context.Background(), cfg, zaptest.NewLogger(t), Options{SkipDB: true, SkipAuth: true})
	require.NoError(t, err)
	defer app.Close()

	resp, err := app.Search.Search(context.Background(), service.Query{Text: "ramen in Shibuya", SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}
