// README: Search orchestrator. Composition root of one search: gate, intent, geocode, places, ranking, filters, grouping, mode, chips, language, narration.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scout/internal/backpressure"
	"scout/internal/cache"
	"scout/internal/dedup"
	"scout/internal/maps"
	"scout/internal/metrics"
	"scout/internal/modules/chips"
	"scout/internal/modules/intent"
	"scout/internal/modules/language"
	"scout/internal/modules/mode"
	"scout/internal/modules/narration"
	"scout/internal/modules/session"
	"scout/internal/modules/venue"
	"scout/internal/types"
)

var (
	// ErrEmptyQuery is returned for a blank query; it is the only error Search returns.
	ErrEmptyQuery = errors.New("service: empty query")
	// ErrAssistNotFound is returned by Assist for unknown or expired request ids.
	ErrAssistNotFound = errors.New("service: assist not found")
)

// Query is one search request as received from the transport.
type Query struct {
	Text      string
	SessionID string
	// UID is the authenticated caller, empty for anonymous searches.
	UID        string
	Filters    intent.Overrides
	Location   *types.Point
	Sort       string
	View       string
	RegionCode string
	// AcceptLanguage is the client's language preference. It is used only
	// when neither the request nor the query text names a language.
	AcceptLanguage string
	// SkipNarration omits the assistant payload; it can be fetched later
	// through Assist with the response's request id.
	SkipNarration bool
}

type Capabilities struct {
	ClosedNowIsDerived bool `json:"closedNowIsDerived"`
}

type Meta struct {
	FailureReason  mode.Reason           `json:"failureReason"`
	Mode           mode.Mode             `json:"mode"`
	OpenNowSummary *venue.OpenNowSummary `json:"openNowSummary,omitempty"`
	Capabilities   *Capabilities         `json:"capabilities,omitempty"`
	Granularity    intent.Granularity    `json:"granularity,omitempty"`
	Language       string                `json:"language"`
	// IntentFallback is set when the query was parsed heuristically.
	IntentFallback bool `json:"intentFallback,omitempty"`
}

// SearchResponse is built once per request and not modified after Search returns.
type SearchResponse struct {
	RequestID string            `json:"requestId"`
	Results   []venue.Venue     `json:"results"`
	Groups    []venue.Group     `json:"groups"`
	Chips     *chips.Set        `json:"chips"`
	Assist    *narration.Output `json:"assist,omitempty"`
	Meta      Meta              `json:"meta"`
}

// IntentParser is satisfied by *intent.Service.
type IntentParser interface {
	Extract(ctx context.Context, query string, session map[string]string) (intent.Parsed, error)
}

// Geocoder is satisfied by *maps.GeocodeService.
type Geocoder interface {
	Resolve(ctx context.Context, text string) ([]maps.GeoCandidate, error)
}

// PlacesSearcher is satisfied by *maps.PlacesService.
type PlacesSearcher interface {
	Search(ctx context.Context, req maps.SearchRequest) ([]venue.Venue, error)
}

// SessionStore is satisfied by *session.Store.
type SessionStore interface {
	Lookup(ctx context.Context, id string) (session.Context, error)
	Remember(ctx context.Context, id string, c session.Context) error
}

// QuotaChecker is satisfied by *quota.Service.
type QuotaChecker interface {
	Consume(ctx context.Context, uid string) error
}

// Narrator is satisfied by *narration.Service.
type Narrator interface {
	Narrate(ctx context.Context, c narration.Context) narration.Output
	Static(c narration.Context) narration.Output
}

// AssistEntry is what the assist cache holds for a skip-narration search.
// Output is filled after the first narration so later reads reuse it.
type AssistEntry struct {
	Context narration.Context `json:"context"`
	Output  *narration.Output `json:"output,omitempty"`
}

// Caches are the shared cache instances. Nil members get a local default.
type Caches struct {
	Intent  *cache.Tiered[intent.Parsed]
	Geocode *cache.Tiered[[]maps.GeoCandidate]
	Places  *cache.Tiered[[]venue.Venue]
	Rank    *cache.Cache[[]venue.Venue]
	Assist  *cache.Tiered[AssistEntry]
}

// Deps are the collaborators of the orchestrator. Sessions, Quota and
// Geocoder are optional.
type Deps struct {
	Intent    IntentParser
	Geocoder  Geocoder
	Places    PlacesSearcher
	Sessions  SessionStore
	Quota     QuotaChecker
	Narrator  Narrator
	Languages *language.Resolver
	Gate      *backpressure.Gate
	Caches    Caches
	Logger    *zap.Logger
}

// Options are the tunables of the pipeline.
type Options struct {
	GeocodeTimeout time.Duration
	PlacesTimeout  time.Duration
	RadiusMeters   uint
	// PlacesLiveTTL bounds staleness of cached results when open-now matters.
	PlacesLiveTTL time.Duration
	Mode          mode.Thresholds
	Chips         chips.Thresholds
	Radii         venue.Radii
	Weights       venue.Weights
}

// SearchOrchestrator runs searches. One instance serves every request.
type SearchOrchestrator struct {
	intent    IntentParser
	geocoder  Geocoder
	places    PlacesSearcher
	sessions  SessionStore
	quota     QuotaChecker
	narrator  Narrator
	languages *language.Resolver
	gate      *backpressure.Gate
	caches    Caches
	opts      Options
	logger    *zap.Logger
	tracer    trace.Tracer

	intentFlight  *dedup.Group[intentOutcome]
	geocodeFlight *dedup.Group[[]maps.GeoCandidate]
	placesFlight  *dedup.Group[[]venue.Venue]
	assistFlight  *dedup.Group[narration.Output]
}

// NewSearchOrchestrator wires an orchestrator from its collaborators.
func NewSearchOrchestrator(deps Deps, opts Options) (*SearchOrchestrator, error) {
	if deps.Intent == nil || deps.Places == nil || deps.Narrator == nil {
		return nil, errors.New("service: intent, places and narrator are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Languages == nil {
		deps.Languages = language.NewResolver(language.Options{})
	}
	if deps.Gate == nil {
		deps.Gate = backpressure.NewGate(backpressure.Options{MaxConcurrent: 64, QueueDepth: 128})
	}
	deps.Caches = withDefaultCaches(deps.Caches, deps.Logger)

	if opts.GeocodeTimeout <= 0 {
		opts.GeocodeTimeout = 3 * time.Second
	}
	if opts.PlacesTimeout <= 0 {
		opts.PlacesTimeout = 5 * time.Second
	}
	if opts.RadiusMeters == 0 {
		opts.RadiusMeters = 3000
	}
	if opts.Mode == (mode.Thresholds{}) {
		opts.Mode = mode.DefaultThresholds
	}
	if opts.Chips == (chips.Thresholds{}) {
		opts.Chips = chips.DefaultThresholds
	}
	if opts.Radii == (venue.Radii{}) {
		opts.Radii = venue.DefaultRadii
	}

	return &SearchOrchestrator{
		intent:        deps.Intent,
		geocoder:      deps.Geocoder,
		places:        deps.Places,
		sessions:      deps.Sessions,
		quota:         deps.Quota,
		narrator:      deps.Narrator,
		languages:     deps.Languages,
		gate:          deps.Gate,
		caches:        deps.Caches,
		opts:          opts,
		logger:        deps.Logger.Named("orchestrator"),
		tracer:        otel.Tracer("scout/service"),
		intentFlight:  dedup.New[intentOutcome]("intent"),
		geocodeFlight: dedup.New[[]maps.GeoCandidate]("geocode"),
		placesFlight:  dedup.New[[]venue.Venue]("places"),
		assistFlight:  dedup.New[narration.Output]("assist"),
	}, nil
}

func withDefaultCaches(c Caches, logger *zap.Logger) Caches {
	if c.Intent == nil {
		c.Intent = cache.NewTiered(cache.New[intent.Parsed](cache.Options{Name: "intent", TTL: time.Hour}), nil, logger)
	}
	if c.Geocode == nil {
		c.Geocode = cache.NewTiered(cache.New[[]maps.GeoCandidate](cache.Options{Name: "geocode", TTL: 24 * time.Hour}), nil, logger)
	}
	if c.Places == nil {
		c.Places = cache.NewTiered(cache.New[[]venue.Venue](cache.Options{Name: "places", TTL: 15 * time.Minute}), nil, logger)
	}
	if c.Rank == nil {
		c.Rank = cache.New[[]venue.Venue](cache.Options{Name: "rank", TTL: 15 * time.Minute})
	}
	if c.Assist == nil {
		c.Assist = cache.NewTiered(cache.New[AssistEntry](cache.Options{Name: "assist", TTL: 5 * time.Minute}), nil, logger)
	}
	return c
}

// searchState accumulates what the stages learn about one request.
type searchState struct {
	parsed      intent.Parsed
	sess        session.Context
	lang        string
	failure     mode.Reason
	origin      *types.Point
	granularity intent.Granularity
	city        string
	ambiguous   bool
	unresolved  bool
	candidates  []string
	searched    bool
	openNow     venue.OpenNowResult
	results     []venue.Venue
	grouping    venue.Grouping
}

func (st *searchState) fail(r mode.Reason) {
	if st.failure == mode.ReasonNone {
		st.failure = r
	}
}

// Search runs one query. Capability failures never surface as errors; they
// become RECOVERY responses with a failure reason.
func (o *SearchOrchestrator) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	requestID := uuid.NewString()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "search", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.Int("query.length", len(q.Text)),
	))
	defer span.End()

	resp, err := backpressure.Run(ctx, o.gate, func(ctx context.Context) (*SearchResponse, error) {
		return o.run(ctx, requestID, q), nil
	})
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("search shed at admission", zap.String("request_id", requestID), zap.Error(err))
		resp = o.shed(ctx, requestID, q, ReasonFor(err))
	}

	span.SetAttributes(
		attribute.String("search.mode", string(resp.Meta.Mode)),
		attribute.String("search.reason", string(resp.Meta.FailureReason)),
		attribute.Int("search.results", len(resp.Results)),
	)
	metrics.SearchResponses.WithLabelValues(string(resp.Meta.Mode), string(resp.Meta.FailureReason)).Inc()
	o.logger.Info("search completed",
		zap.String("request_id", requestID),
		zap.String("mode", string(resp.Meta.Mode)),
		zap.String("reason", string(resp.Meta.FailureReason)),
		zap.String("language", resp.Meta.Language),
		zap.Int("results", len(resp.Results)),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

func (o *SearchOrchestrator) run(ctx context.Context, requestID string, q Query) *SearchResponse {
	st := &searchState{failure: mode.ReasonNone}

	if err := o.consumeQuota(ctx, q.UID); err != nil {
		st.parsed = intent.Heuristic(q.Text).Apply(q.Filters)
		st.fail(mode.ReasonQuotaExceeded)
		st.lang = o.resolveLanguage(st, q)
		return o.assemble(ctx, requestID, q, st)
	}

	var (
		parsed    intent.Parsed
		intentErr error
		g         errgroup.Group
	)
	g.Go(func() error {
		st.sess = o.lookupSession(ctx, q.SessionID)
		return nil
	})
	g.Go(func() error {
		parsed, intentErr = o.extractIntent(ctx, q)
		return nil
	})
	_ = g.Wait()

	if intentErr != nil {
		st.fail(ReasonFor(intentErr))
	}
	st.parsed = parsed.Apply(q.Filters)
	st.lang = o.resolveLanguage(st, q)

	if o.locate(ctx, q, st) {
		o.search(ctx, q, st)
	}
	return o.assemble(ctx, requestID, q, st)
}

func (o *SearchOrchestrator) consumeQuota(ctx context.Context, uid string) error {
	if o.quota == nil {
		return nil
	}
	err := o.quota.Consume(ctx, uid)
	if err == nil {
		return nil
	}
	if ReasonFor(err) == mode.ReasonQuotaExceeded {
		return err
	}
	// A broken quota store does not block searches.
	o.logger.Warn("quota check failed", zap.String("uid", uid), zap.Error(err))
	return nil
}

func (o *SearchOrchestrator) lookupSession(ctx context.Context, id string) session.Context {
	if o.sessions == nil || id == "" {
		return session.Context{}
	}
	s, err := o.sessions.Lookup(ctx, id)
	if err != nil {
		o.logger.Warn("session lookup failed", zap.String("session_id", id), zap.Error(err))
		return session.Context{}
	}
	return s
}

func (o *SearchOrchestrator) resolveLanguage(st *searchState, q Query) string {
	region := q.RegionCode
	if region == "" {
		region = st.sess.Region
	}
	return o.languages.Resolve(language.Input{
		SessionUILanguage: st.sess.UILanguage,
		BaseLanguage:      q.Filters.Language,
		DetectedLanguage:  st.parsed.Language,
		ClientLanguage:    q.AcceptLanguage,
		RegionCode:        region,
	}).Language
}

// locate resolves the search origin and granularity. It reports whether the
// provider search should run.
func (o *SearchOrchestrator) locate(ctx context.Context, q Query, st *searchState) bool {
	if len(st.parsed.AmbiguousTerms) > 0 {
		st.ambiguous = true
		st.candidates = st.parsed.LocationCandidates
	}

	switch {
	case st.parsed.LocationText != "":
		if o.geocoder == nil {
			st.unresolved = true
			return false
		}
		cands, err := o.geocode(ctx, st.parsed.LocationText)
		if err != nil {
			o.logger.Warn("geocode failed", zap.String("location", st.parsed.LocationText), zap.Error(err))
			st.fail(geocodeReason(err))
			return false
		}
		if len(cands) == 0 {
			st.unresolved = true
			return false
		}
		best := cands[0]
		if best.PartialMatch && len(cands) > 1 {
			st.ambiguous = true
			st.candidates = nil
			for _, c := range cands {
				st.candidates = append(st.candidates, c.FormattedAddress)
			}
		}
		st.origin = &best.Location
		st.granularity = venue.ClassifyGranularity(st.parsed.Granularity, best.Types)
		if st.granularity == intent.GranularityCity {
			st.city = best.Locality
			if st.city == "" {
				st.city = st.parsed.LocationText
			}
		}

	case st.parsed.NearMe || q.Location != nil:
		switch {
		case q.Location != nil:
			st.origin = q.Location
		case st.sess.LastLocation != nil:
			st.origin = st.sess.LastLocation
		default:
			st.unresolved = true
			return false
		}
		st.granularity = venue.ClassifyGranularity(st.parsed.Granularity, nil)
	}
	return true
}

// search runs the provider call and the deterministic pipeline over its results.
func (o *SearchOrchestrator) search(ctx context.Context, q Query, st *searchState) {
	filters := st.parsed.Filters
	req := maps.SearchRequest{
		Query:        st.parsed.SearchText(),
		Location:     st.origin,
		RadiusMeters: o.opts.RadiusMeters,
		Language:     st.lang,
		OpenNow:      filters.OpenNow,
		PriceMax:     filters.PriceMax,
	}
	if req.Query == "" {
		req.Query = q.Text
	}

	fetch, err := o.searchPlaces(ctx, req)
	if err != nil {
		o.logger.Warn("places search failed", zap.Error(err))
		st.fail(placesReason(err))
		return
	}

	_, done := o.stage(ctx, "pipeline")
	ranked := o.rank(fetch, venue.RankInput{Origin: st.origin, Terms: st.parsed.Terms, Weights: o.opts.Weights})
	if st.granularity == intent.GranularityCity {
		ranked = venue.FilterToCity(ranked, st.city)
	}
	st.openNow = venue.ApplyOpenNow(filters.OpenNow, ranked)
	st.searched = true

	kept := venue.ApplyConstraints(filters, st.openNow.Kept)
	if key, ok := venue.ParseSortKey(q.Sort); ok {
		kept = venue.Sort(kept, key)
	}
	st.results = kept
	st.grouping = venue.GroupByGranularity(st.granularity, st.origin, kept, o.opts.Radii)
	done(nil)
}

func (o *SearchOrchestrator) assemble(ctx context.Context, requestID string, q Query, st *searchState) *SearchResponse {
	decision := mode.Classify(mode.Signals{
		Failure:            st.failure,
		ResultCount:        len(st.results),
		Confidence:         st.parsed.Confidence,
		Ambiguous:          st.ambiguous,
		LocationUnresolved: st.unresolved,
	}, o.opts.Mode)

	sortKey, _ := venue.ParseSortKey(q.Sort)
	set := chips.Generate(chips.Input{
		Mode:               decision.Mode,
		Language:           st.lang,
		ResultCount:        len(st.results),
		Confidence:         st.parsed.Confidence,
		Filters:            st.parsed.Filters,
		Summary:            st.openNow.Summary,
		HasDelivery:        venue.AnyDelivery(st.openNow.Kept),
		HasPrice:           venue.AnyPriced(st.openNow.Kept),
		HasRating:          venue.AnyRated(st.openNow.Kept),
		HasOrigin:          st.origin != nil,
		LocationCandidates: st.candidates,
		Sort:               sortKey,
		View:               q.View,
	}, o.opts.Chips)

	resp := &SearchResponse{
		RequestID: requestID,
		Results:   st.results,
		Groups:    st.grouping.Groups,
		Chips:     set,
		Meta: Meta{
			FailureReason:  decision.Reason,
			Mode:           decision.Mode,
			Granularity:    st.granularity,
			Language:       st.lang,
			IntentFallback: st.parsed.Fallback,
		},
	}
	if resp.Results == nil {
		resp.Results = []venue.Venue{}
	}
	if resp.Groups == nil {
		resp.Groups = []venue.Group{}
	}
	if st.searched {
		summary := st.openNow.Summary
		resp.Meta.OpenNowSummary = &summary
		if st.openNow.Derived {
			resp.Meta.Capabilities = &Capabilities{ClosedNowIsDerived: true}
		}
	}

	c := narrationContext(resp, q)
	if q.SkipNarration {
		o.caches.Assist.Set(ctx, requestID, AssistEntry{Context: c}, 0)
	} else {
		nctx, done := o.stage(ctx, "narration")
		out := o.narrator.Narrate(nctx, c)
		done(nil)
		resp.Assist = &out
	}

	if decision.Mode == mode.Normal {
		o.rememberSession(ctx, q, st)
	}
	return resp
}

func narrationContext(resp *SearchResponse, q Query) narration.Context {
	c := narration.Context{
		Mode:        resp.Meta.Mode,
		Reason:      resp.Meta.FailureReason,
		Query:       q.Text,
		Language:    resp.Meta.Language,
		ResultCount: len(resp.Results),
	}
	if len(resp.Results) > 0 {
		c.TopResult = resp.Results[0].Name
	}
	return c
}

func (o *SearchOrchestrator) rememberSession(ctx context.Context, q Query, st *searchState) {
	if o.sessions == nil || q.SessionID == "" {
		return
	}
	err := o.sessions.Remember(ctx, q.SessionID, session.Context{
		UILanguage:   st.lang,
		LastLocation: st.origin,
		Region:       q.RegionCode,
	})
	if err != nil {
		o.logger.Warn("session remember failed", zap.String("session_id", q.SessionID), zap.Error(err))
	}
}

// shed builds the response for a request refused at admission. No external
// capability is called on this path.
func (o *SearchOrchestrator) shed(ctx context.Context, requestID string, q Query, reason mode.Reason) *SearchResponse {
	st := &searchState{failure: reason}
	st.parsed = intent.Parsed{Language: language.GuessFromScript(q.Text)}
	st.lang = o.resolveLanguage(st, q)

	decision := mode.Classify(mode.Signals{Failure: reason}, o.opts.Mode)
	resp := &SearchResponse{
		RequestID: requestID,
		Results:   []venue.Venue{},
		Groups:    []venue.Group{},
		Chips:     chips.Generate(chips.Input{Mode: decision.Mode, Language: st.lang}, o.opts.Chips),
		Meta:      Meta{FailureReason: decision.Reason, Mode: decision.Mode, Language: st.lang},
	}
	c := narrationContext(resp, q)
	out := o.narrator.Static(c)
	if q.SkipNarration {
		o.caches.Assist.Set(ctx, requestID, AssistEntry{Context: c, Output: &out}, 0)
	} else {
		resp.Assist = &out
	}
	return resp
}

// Assist narrates a previous skip-narration search. Concurrent calls for the
// same request share one model call, and later calls reuse its output.
func (o *SearchOrchestrator) Assist(ctx context.Context, requestID string) (*narration.Output, error) {
	entry, ok := o.caches.Assist.Get(ctx, requestID)
	if !ok {
		return nil, ErrAssistNotFound
	}
	if entry.Output != nil {
		return entry.Output, nil
	}

	out, _, err := o.assistFlight.Do(ctx, requestID, func(ctx context.Context) (narration.Output, error) {
		out, err := backpressure.Run(ctx, o.gate, func(ctx context.Context) (narration.Output, error) {
			ctx, done := o.stage(ctx, "narration")
			defer done(nil)
			return o.narrator.Narrate(ctx, entry.Context), nil
		})
		if err != nil {
			o.logger.Warn("assist shed at admission", zap.String("request_id", requestID), zap.Error(err))
			return o.narrator.Static(entry.Context), nil
		}
		o.caches.Assist.Set(ctx, requestID, AssistEntry{Context: entry.Context, Output: &out}, 0)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// stage starts a traced, timed stage. The returned func ends it.
func (o *SearchOrchestrator) stage(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := o.tracer.Start(ctx, name)
	start := time.Now()
	return ctx, func(err error) {
		metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, name+" failed")
		}
		span.End()
	}
}

// Stats is the tuning snapshot served by the debug endpoint.
type Stats struct {
	Gate   backpressure.Stats `json:"gate"`
	Caches []cache.Stats      `json:"caches"`
	Dedup  []dedup.Stats      `json:"dedup"`
}

func (o *SearchOrchestrator) Stats() Stats {
	return Stats{
		Gate: o.gate.Stats(),
		Caches: []cache.Stats{
			o.caches.Intent.Local().Stats(),
			o.caches.Geocode.Local().Stats(),
			o.caches.Places.Local().Stats(),
			o.caches.Rank.Stats(),
			o.caches.Assist.Local().Stats(),
		},
		Dedup: []dedup.Stats{
			o.intentFlight.Stats(),
			o.geocodeFlight.Stats(),
			o.placesFlight.Stats(),
			o.assistFlight.Stats(),
		},
	}
}
