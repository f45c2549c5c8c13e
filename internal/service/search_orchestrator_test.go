package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scout/internal/ai"
	"scout/internal/backpressure"
	"scout/internal/maps"
	"scout/internal/modules/chips"
	"scout/internal/modules/intent"
	"scout/internal/modules/language"
	"scout/internal/modules/mode"
	"scout/internal/modules/narration"
	"scout/internal/modules/quota"
	"scout/internal/modules/session"
	"scout/internal/modules/venue"
	"scout/internal/types"
)

var shibuya = types.Point{Lat: 35.6595, Lng: 139.7005}

type fakeIntent struct {
	parsed intent.Parsed
	err    error
	calls  atomic.Int32
}

func (f *fakeIntent) Extract(context.Context, string, map[string]string) (intent.Parsed, error) {
	f.calls.Add(1)
	return f.parsed, f.err
}

type fakeGeocoder struct {
	cands []maps.GeoCandidate
	err   error
	calls atomic.Int32
}

func (f *fakeGeocoder) Resolve(context.Context, string) ([]maps.GeoCandidate, error) {
	f.calls.Add(1)
	return f.cands, f.err
}

type fakePlaces struct {
	mu      sync.Mutex
	venues  []venue.Venue
	err     error
	release chan struct{}
	reqs    []maps.SearchRequest
	calls   atomic.Int32
}

func (f *fakePlaces) Search(ctx context.Context, req maps.SearchRequest) ([]venue.Venue, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.venues, f.err
}

func (f *fakePlaces) requests() []maps.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]maps.SearchRequest(nil), f.reqs...)
}

type fakeModel struct {
	out   *ai.AssistantOutput
	calls atomic.Int32
}

func (f *fakeModel) Complete(context.Context, ai.NarrationPrompt, map[string]any) (*ai.AssistantOutput, error) {
	f.calls.Add(1)
	return f.out, nil
}

type fakeSessions struct {
	mu         sync.Mutex
	stored     session.Context
	remembered []session.Context
}

func (f *fakeSessions) Lookup(context.Context, string) (session.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

func (f *fakeSessions) Remember(_ context.Context, _ string, c session.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remembered = append(f.remembered, c)
	return nil
}

type fakeQuota struct{ err error }

func (f fakeQuota) Consume(context.Context, string) error { return f.err }

type harness struct {
	intent   *fakeIntent
	geocoder *fakeGeocoder
	places   *fakePlaces
	model    *fakeModel
	sessions *fakeSessions
	gate     *backpressure.Gate
	quota    QuotaChecker
	opts     Options
}

func newHarness() *harness {
	return &harness{
		intent:   &fakeIntent{parsed: intent.Parsed{Terms: []string{"ramen"}, Language: "en", Confidence: 0.9}},
		geocoder: &fakeGeocoder{},
		places:   &fakePlaces{},
		model:    &fakeModel{out: &ai.AssistantOutput{Message: "Here are some ramen places nearby."}},
		sessions: &fakeSessions{},
		gate:     backpressure.NewGate(backpressure.Options{MaxConcurrent: 8, QueueDepth: 8}),
	}
}

func (h *harness) build(t *testing.T) *SearchOrchestrator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	narrator, err := narration.NewService(h.model, narration.Options{Timeout: time.Second}, logger)
	require.NoError(t, err)
	o, err := NewSearchOrchestrator(Deps{
		Intent:    h.intent,
		Geocoder:  h.geocoder,
		Places:    h.places,
		Sessions:  h.sessions,
		Quota:     h.quota,
		Narrator:  narrator,
		Languages: language.NewResolver(language.Options{Default: "en"}),
		Gate:      h.gate,
		Logger:    logger,
	}, h.opts)
	require.NoError(t, err)
	return o
}

// at places a venue km north of origin.
func at(origin types.Point, km float64, id string, open venue.OpenState) venue.Venue {
	return venue.Venue{
		PlaceID:     id,
		Name:        "Venue " + id,
		Address:     "Tokyo, Japan",
		Location:    types.Point{Lat: origin.Lat + km/111.0, Lng: origin.Lng},
		Rating:      4.2,
		RatingCount: 50,
		PriceLevel:  2,
		OpenNow:     open,
	}
}

func sixVenues() []venue.Venue {
	return []venue.Venue{
		at(shibuya, 0.5, "a", venue.OpenStateOpen),
		at(shibuya, 1.0, "b", venue.OpenStateClosed),
		at(shibuya, 2.0, "c", venue.OpenStateUnknown),
		at(shibuya, 3.0, "d", venue.OpenStateOpen),
		at(shibuya, 4.0, "e", venue.OpenStateClosed),
		at(shibuya, 8.0, "f", venue.OpenStateOpen),
	}
}

func chipIDs(s *chips.Set) []string {
	var ids []string
	for _, c := range s.Chips() {
		ids = append(ids, c.Info().ID)
	}
	return ids
}

func TestSearch_EmptyQuery(t *testing.T) {
	o := newHarness().build(t)
	_, err := o.Search(context.Background(), Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_NormalFlow(t *testing.T) {
	h := newHarness()
	h.intent.parsed.LocationText = "Shibuya"
	h.geocoder.cands = []maps.GeoCandidate{{Location: shibuya, FormattedAddress: "Shibuya, Tokyo", Types: []string{"neighborhood", "political"}}}
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen in Shibuya", SessionID: "s1"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, mode.Normal, resp.Meta.Mode)
	assert.Equal(t, mode.ReasonNone, resp.Meta.FailureReason)
	assert.Equal(t, intent.GranularityArea, resp.Meta.Granularity)
	assert.Len(t, resp.Results, 6)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, venue.GroupExact, resp.Groups[0].Name)
	assert.Equal(t, venue.GroupNearby, resp.Groups[1].Name)
	assert.Nil(t, resp.Meta.Capabilities)
	require.NotNil(t, resp.Meta.OpenNowSummary)
	assert.Equal(t, venue.OpenNowSummary{Open: 3, Closed: 2, Unknown: 1, Total: 6}, *resp.Meta.OpenNowSummary)

	assert.LessOrEqual(t, resp.Chips.Len(), chips.DefaultThresholds.MaxChips)
	assert.LessOrEqual(t, len(resp.Chips.Active(chips.KindSort)), 1)
	assert.Len(t, resp.Chips.Active(chips.KindView), 1)

	require.NotNil(t, resp.Assist)
	assert.Equal(t, narration.SourceModel, resp.Assist.Source)
	assert.Equal(t, int32(1), h.model.calls.Load())

	require.Len(t, h.sessions.remembered, 1)
	assert.Equal(t, "en", h.sessions.remembered[0].UILanguage)
	assert.Equal(t, &shibuya, h.sessions.remembered[0].LastLocation)
}

func TestSearch_ExcludeIsDerivedAndNeverSentUpstream(t *testing.T) {
	h := newHarness()
	h.intent.parsed.Filters.OpenNow = intent.OpenNowExclude
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen closed now"})
	require.NoError(t, err)

	reqs := h.places.requests()
	require.Len(t, reqs, 1)
	outbound := maps.NewPlacesService(nil, nil, "").BuildTextSearchRequest(reqs[0])
	assert.False(t, outbound.OpenNow, "exclude must not reach the provider")

	require.NotNil(t, resp.Meta.Capabilities)
	assert.True(t, resp.Meta.Capabilities.ClosedNowIsDerived)
	for _, v := range resp.Results {
		assert.Equal(t, venue.OpenStateClosed, v.OpenNow)
	}
	assert.Len(t, resp.Results, 2)

	s := resp.Meta.OpenNowSummary
	require.NotNil(t, s)
	assert.Equal(t, 6, s.Total, "summary covers the unfiltered set")
	assert.Equal(t, s.Total, s.Open+s.Closed+s.Unknown)
}

func TestSearch_UnsetIsNotTreatedAsExclude(t *testing.T) {
	h := newHarness()
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 6)
	assert.Nil(t, resp.Meta.Capabilities)
	assert.Equal(t, intent.OpenNowUnset, h.places.requests()[0].OpenNow)
}

func TestSearch_NonDefaultLanguageLowConfidenceZeroResults(t *testing.T) {
	h := newHarness()
	h.intent.parsed = intent.Parsed{Terms: []string{"ラーメン"}, Language: "ja", Confidence: 0.4}
	h.model.out = &ai.AssistantOutput{Message: "Sorry, I couldn't find anything."}
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "深夜のラーメン"})
	require.NoError(t, err)

	assert.Equal(t, mode.Recovery, resp.Meta.Mode)
	assert.Equal(t, "ja", resp.Meta.Language)
	require.NotNil(t, resp.Assist)
	assert.Equal(t, narration.SourceFallback, resp.Assist.Source)
	want, _ := narration.Fallback(mode.Recovery, resp.Meta.FailureReason, "ja")
	assert.Equal(t, want, resp.Assist.Message)
	assert.True(t, language.ScriptMatches(resp.Assist.Message, "ja", 0.5))
	assert.Equal(t, int32(1), h.model.calls.Load(), "a mismatch is never retried")
	assert.Empty(t, h.sessions.remembered)
}

func TestSearch_QueryLanguageBeatsAcceptLanguage(t *testing.T) {
	h := newHarness()
	h.intent.parsed = intent.Parsed{Terms: []string{"פיצה"}, Language: "he", Confidence: 0.3}
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "פיצה בתל אביב", AcceptLanguage: "en-US"})
	require.NoError(t, err)

	assert.Equal(t, mode.Recovery, resp.Meta.Mode)
	assert.Equal(t, "he", resp.Meta.Language)
	require.NotNil(t, resp.Assist)
	want, _ := narration.Fallback(mode.Recovery, resp.Meta.FailureReason, "he")
	assert.Equal(t, want, resp.Assist.Message)
}

func TestSearch_AcceptLanguageUsedWhenQueryHasNone(t *testing.T) {
	h := newHarness()
	h.intent.parsed.Language = ""
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "tacos", AcceptLanguage: "fr-CA"})
	require.NoError(t, err)
	assert.Equal(t, "fr", resp.Meta.Language)

	resp, err = o.Search(context.Background(), Query{Text: "tacos", AcceptLanguage: "fr-CA", Filters: intent.Overrides{Language: "es"}})
	require.NoError(t, err)
	assert.Equal(t, "es", resp.Meta.Language)
}

func TestSearch_CityQueryIsSingleGroup(t *testing.T) {
	h := newHarness()
	h.intent.parsed.LocationText = "Tokyo"
	h.geocoder.cands = []maps.GeoCandidate{{Location: shibuya, Types: []string{"locality", "political"}, Locality: "Tokyo"}}
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen in Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, intent.GranularityCity, resp.Meta.Granularity)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, venue.GroupAll, resp.Groups[0].Name)
	assert.Len(t, resp.Groups[0].Venues, 6)
}

func TestSearch_ClosedNowChipOnlyAfterRequireWithNoResults(t *testing.T) {
	cases := []struct {
		name   string
		filter intent.OpenNow
		venues []venue.Venue
		want   bool
	}{
		{"require with no results", intent.OpenNowRequire, nil, true},
		{"exclude with no closed venues", intent.OpenNowExclude, []venue.Venue{at(shibuya, 1, "a", venue.OpenStateOpen)}, false},
		{"unset with no results", intent.OpenNowUnset, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.intent.parsed.Filters.OpenNow = tc.filter
			h.places.venues = tc.venues
			o := h.build(t)

			resp, err := o.Search(context.Background(), Query{Text: "ramen"})
			require.NoError(t, err)
			assert.Equal(t, mode.Recovery, resp.Meta.Mode)
			assert.Equal(t, mode.ReasonNoResults, resp.Meta.FailureReason)
			assert.Equal(t, tc.want, contains(chipIDs(resp.Chips), chips.IDClosedNow))
		})
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestSearch_CapabilityFailuresBecomeRecovery(t *testing.T) {
	cases := []struct {
		name       string
		geoErr     error
		placesErr  error
		want       mode.Reason
		wantPlaces int32
	}{
		{"geocode error", errors.New("boom"), nil, mode.ReasonGeocodeError, 0},
		{"geocode quota", fmt.Errorf("%w: daily", maps.ErrQuotaExceeded), nil, mode.ReasonQuotaExceeded, 0},
		{"places error", nil, fmt.Errorf("%w: 500", maps.ErrProvider), mode.ReasonProviderError, 1},
		{"places quota", nil, maps.ErrQuotaExceeded, mode.ReasonQuotaExceeded, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.intent.parsed.LocationText = "Shibuya"
			h.geocoder.cands = []maps.GeoCandidate{{Location: shibuya, Types: []string{"neighborhood"}}}
			h.geocoder.err = tc.geoErr
			h.places.venues = sixVenues()
			h.places.err = tc.placesErr
			o := h.build(t)

			resp, err := o.Search(context.Background(), Query{Text: "ramen in Shibuya"})
			require.NoError(t, err)
			assert.Equal(t, mode.Recovery, resp.Meta.Mode)
			assert.Equal(t, tc.want, resp.Meta.FailureReason)
			assert.Equal(t, tc.wantPlaces, h.places.calls.Load())
			assert.Empty(t, resp.Results)
			require.NotNil(t, resp.Assist)
		})
	}
}

func TestSearch_PlacesTimeoutIsProviderError(t *testing.T) {
	h := newHarness()
	h.places.release = make(chan struct{})
	defer close(h.places.release)
	h.opts.PlacesTimeout = 30 * time.Millisecond
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen"})
	require.NoError(t, err)
	assert.Equal(t, mode.Recovery, resp.Meta.Mode)
	assert.Equal(t, mode.ReasonProviderError, resp.Meta.FailureReason)
}

func TestSearch_UserQuotaExhausted(t *testing.T) {
	h := newHarness()
	h.quota = fakeQuota{err: quota.ErrInsufficientTokens}
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen", UID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, mode.ReasonQuotaExceeded, resp.Meta.FailureReason)
	assert.Zero(t, h.intent.calls.Load())
	assert.Zero(t, h.places.calls.Load())
}

func TestSearch_BrokenQuotaStoreDoesNotBlock(t *testing.T) {
	h := newHarness()
	h.quota = fakeQuota{err: errors.New("db down")}
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen", UID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, mode.Normal, resp.Meta.Mode)
}

func TestSearch_CapacityExceeded(t *testing.T) {
	h := newHarness()
	h.gate = backpressure.NewGate(backpressure.Options{MaxConcurrent: 1, QueueDepth: 0})
	h.places.release = make(chan struct{})
	h.places.venues = sixVenues()
	o := h.build(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := o.Search(context.Background(), Query{Text: "ramen"})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return h.gate.Stats().InFlight == 1 }, time.Second, time.Millisecond)

	resp, err := o.Search(context.Background(), Query{Text: "sushi"})
	require.NoError(t, err)
	assert.Equal(t, mode.Recovery, resp.Meta.Mode)
	assert.Equal(t, mode.ReasonCapacityExceeded, resp.Meta.FailureReason)
	require.NotNil(t, resp.Assist)
	assert.Equal(t, narration.SourceFallback, resp.Assist.Source)

	close(h.places.release)
	<-done
	assert.Equal(t, int32(1), h.model.calls.Load(), "the shed request made no model call")
	assert.Equal(t, int32(1), h.places.calls.Load())
}

func TestSearch_ConcurrentIdenticalQueriesShareOneProviderCall(t *testing.T) {
	h := newHarness()
	h.places.release = make(chan struct{})
	h.places.venues = sixVenues()
	o := h.build(t)

	const n = 5
	var wg sync.WaitGroup
	results := make([]*SearchResponse, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := o.Search(context.Background(), Query{Text: "ramen", SkipNarration: true})
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}
	require.Eventually(t, func() bool { return o.placesFlight.Stats().Calls == n }, time.Second, time.Millisecond)
	close(h.places.release)
	wg.Wait()

	assert.Equal(t, int32(1), h.places.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].Results, r.Results)
	}
}

func TestSearch_CacheServesRepeatQuery(t *testing.T) {
	h := newHarness()
	h.intent.parsed.LocationText = "Shibuya"
	h.geocoder.cands = []maps.GeoCandidate{{Location: shibuya, Types: []string{"neighborhood"}}}
	h.places.venues = sixVenues()
	o := h.build(t)

	for i := 0; i < 3; i++ {
		_, err := o.Search(context.Background(), Query{Text: "ramen in Shibuya", SkipNarration: true})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), h.intent.calls.Load())
	assert.Equal(t, int32(1), h.geocoder.calls.Load())
	assert.Equal(t, int32(1), h.places.calls.Load())
}

func TestSearch_SkipNarrationThenAssist(t *testing.T) {
	h := newHarness()
	h.places.venues = sixVenues()
	o := h.build(t)
	ctx := context.Background()

	resp, err := o.Search(ctx, Query{Text: "ramen", SkipNarration: true})
	require.NoError(t, err)
	assert.Nil(t, resp.Assist)
	assert.Zero(t, h.model.calls.Load())

	out, err := o.Assist(ctx, resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, narration.SourceModel, out.Source)
	assert.Equal(t, resp.Meta.Mode, out.Mode)

	again, err := o.Assist(ctx, resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, int32(1), h.model.calls.Load())

	_, err = o.Assist(ctx, "unknown")
	assert.ErrorIs(t, err, ErrAssistNotFound)
}

func TestSearch_NearMeWithoutCoordinatesAsksForLocation(t *testing.T) {
	h := newHarness()
	h.intent.parsed.NearMe = true
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen near me"})
	require.NoError(t, err)
	assert.Equal(t, mode.Clarify, resp.Meta.Mode)
	assert.Equal(t, mode.ReasonLocationUnresolved, resp.Meta.FailureReason)
	assert.Zero(t, h.places.calls.Load())
	require.NotNil(t, resp.Assist)
	assert.NotEmpty(t, resp.Assist.Question)
}

func TestSearch_NearMeUsesSessionLocation(t *testing.T) {
	h := newHarness()
	h.intent.parsed.NearMe = true
	h.sessions.stored = session.Context{LastLocation: &shibuya}
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen near me", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, mode.Normal, resp.Meta.Mode)
	assert.Equal(t, &shibuya, h.places.requests()[0].Location)
}

func TestSearch_AmbiguousGeocodeClarifies(t *testing.T) {
	h := newHarness()
	h.intent.parsed.LocationText = "Springfield"
	h.geocoder.cands = []maps.GeoCandidate{
		{Location: shibuya, FormattedAddress: "Springfield, IL, USA", Types: []string{"locality"}, PartialMatch: true},
		{Location: shibuya, FormattedAddress: "Springfield, MA, USA", Types: []string{"locality"}, PartialMatch: true},
	}
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "diner in Springfield"})
	require.NoError(t, err)
	assert.Equal(t, mode.Clarify, resp.Meta.Mode)
	assert.Equal(t, mode.ReasonAmbiguousQuery, resp.Meta.FailureReason)
	assert.LessOrEqual(t, resp.Chips.Len(), chips.DefaultThresholds.MaxClarify)
	for _, c := range resp.Chips.Chips() {
		assert.NotEqual(t, chips.KindSort, c.Kind())
		assert.NotEqual(t, chips.KindFilter, c.Kind())
	}
}

func TestSearch_IntentTimeoutFallsBackToHeuristic(t *testing.T) {
	h := newHarness()
	h.places.venues = sixVenues()
	o := h.build(t)
	o.intent = intent.NewService(slowExtractor{}, 20*time.Millisecond, zaptest.NewLogger(t))

	resp, err := o.Search(context.Background(), Query{Text: "ramen"})
	require.NoError(t, err)
	assert.True(t, resp.Meta.IntentFallback)
	assert.Equal(t, mode.Recovery, resp.Meta.Mode)
	assert.Equal(t, mode.ReasonLowConfidence, resp.Meta.FailureReason)
}

type slowExtractor struct{}

func (slowExtractor) ExtractIntent(ctx context.Context, _ string, _ map[string]string) (*ai.IntentResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearch_SortAndView(t *testing.T) {
	h := newHarness()
	h.places.venues = sixVenues()
	o := h.build(t)

	resp, err := o.Search(context.Background(), Query{Text: "ramen", Sort: "rating", View: "map"})
	require.NoError(t, err)
	assert.Equal(t, []string{chips.IDSortRating}, resp.Chips.Active(chips.KindSort))
	assert.Equal(t, []string{chips.IDViewMap}, resp.Chips.Active(chips.KindView))
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Rating, resp.Results[i].Rating)
	}
}

func TestReasonFor(t *testing.T) {
	cases := []struct {
		err  error
		want mode.Reason
	}{
		{nil, mode.ReasonNone},
		{fmt.Errorf("wrap: %w", backpressure.ErrCapacityExceeded), mode.ReasonCapacityExceeded},
		{maps.ErrQuotaExceeded, mode.ReasonQuotaExceeded},
		{ai.ErrQuotaExceeded, mode.ReasonQuotaExceeded},
		{quota.ErrInsufficientTokens, mode.ReasonQuotaExceeded},
		{maps.ErrProvider, mode.ReasonProviderError},
		{context.DeadlineExceeded, mode.ReasonProviderError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ReasonFor(tc.err), fmt.Sprint(tc.err))
	}
	assert.Equal(t, mode.ReasonGeocodeError, geocodeReason(errors.New("x")))
	assert.Equal(t, mode.ReasonQuotaExceeded, geocodeReason(maps.ErrQuotaExceeded))
}
