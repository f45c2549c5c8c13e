package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"scout/internal/ai"
	"scout/internal/backpressure"
	"scout/internal/dedup"
	"scout/internal/maps"
	"scout/internal/modules/intent"
	"scout/internal/modules/mode"
	"scout/internal/modules/quota"
	"scout/internal/modules/venue"
	"scout/internal/types"
)

// ReasonFor maps a capability error onto its failure reason. Anything not
// recognised is a provider error.
func ReasonFor(err error) mode.Reason {
	switch {
	case err == nil:
		return mode.ReasonNone
	case errors.Is(err, backpressure.ErrCapacityExceeded):
		return mode.ReasonCapacityExceeded
	case errors.Is(err, maps.ErrQuotaExceeded),
		errors.Is(err, ai.ErrQuotaExceeded),
		errors.Is(err, quota.ErrInsufficientTokens):
		return mode.ReasonQuotaExceeded
	default:
		return mode.ReasonProviderError
	}
}

func geocodeReason(err error) mode.Reason {
	if r := ReasonFor(err); r != mode.ReasonProviderError {
		return r
	}
	return mode.ReasonGeocodeError
}

func placesReason(err error) mode.Reason {
	return ReasonFor(err)
}

// intentOutcome carries the parse together with a quota refusal, which
// still comes with a usable heuristic parse.
type intentOutcome struct {
	parsed intent.Parsed
	err    error
}

func (o *SearchOrchestrator) extractIntent(ctx context.Context, q Query) (intent.Parsed, error) {
	ctx, done := o.stage(ctx, "intent")
	key := dedup.Key("intent", q.Text, q.RegionCode)
	if p, ok := o.caches.Intent.Get(ctx, key); ok {
		done(nil)
		return p, nil
	}

	var hints map[string]string
	if q.RegionCode != "" {
		hints = map[string]string{"region": q.RegionCode}
	}
	res, _, err := o.intentFlight.Do(ctx, key, func(ctx context.Context) (intentOutcome, error) {
		p, err := o.intent.Extract(ctx, q.Text, hints)
		if err == nil && !p.Fallback {
			o.caches.Intent.Set(ctx, key, p, 0)
		}
		return intentOutcome{parsed: p, err: err}, nil
	})
	if err != nil {
		// The caller gave up waiting on a shared call.
		done(err)
		return intent.Heuristic(q.Text), nil
	}
	done(res.err)
	return res.parsed, res.err
}

func (o *SearchOrchestrator) geocode(ctx context.Context, text string) ([]maps.GeoCandidate, error) {
	ctx, done := o.stage(ctx, "geocode")
	key := dedup.Key("geocode", text)
	if c, ok := o.caches.Geocode.Get(ctx, key); ok {
		done(nil)
		return c, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.opts.GeocodeTimeout)
	defer cancel()
	cands, _, err := o.geocodeFlight.Do(waitCtx, key, func(ctx context.Context) ([]maps.GeoCandidate, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.GeocodeTimeout)
		defer cancel()
		c, err := o.geocoder.Resolve(callCtx, text)
		if err != nil {
			return nil, err
		}
		o.caches.Geocode.Set(ctx, key, c, 0)
		return c, nil
	})
	done(err)
	return cands, err
}

// placesKey covers every input that changes the provider's answer, plus
// the freshness class: an open-now constrained search must not be served an
// entry stored under the longer default TTL.
func placesKey(req maps.SearchRequest) string {
	return dedup.Key("places",
		req.Query,
		pointKey(req.Location),
		strconv.FormatUint(uint64(req.RadiusMeters), 10),
		req.Language,
		strconv.FormatBool(req.OpenNow == intent.OpenNowRequire),
		strconv.FormatBool(req.OpenNow.IsSet()),
		strconv.Itoa(req.PriceMax),
	)
}

func pointKey(p *types.Point) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(p.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 5, 64)
}

// placesFetch is one provider answer. fresh is false when it came from the
// cache, in which case a ranking computed from the same answer may be reused.
type placesFetch struct {
	venues []venue.Venue
	key    string
	ttl    time.Duration
	fresh  bool
}

func (o *SearchOrchestrator) placesTTL(req maps.SearchRequest) time.Duration {
	ttl := o.caches.Places.Local().TTL()
	if req.OpenNow.IsSet() && o.opts.PlacesLiveTTL > 0 {
		ttl = min(ttl, o.opts.PlacesLiveTTL)
	}
	return ttl
}

func (o *SearchOrchestrator) searchPlaces(ctx context.Context, req maps.SearchRequest) (placesFetch, error) {
	ctx, done := o.stage(ctx, "places")
	key := placesKey(req)
	ttl := o.placesTTL(req)
	if v, ok := o.caches.Places.Get(ctx, key); ok {
		done(nil)
		return placesFetch{venues: v, key: key, ttl: ttl}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.opts.PlacesTimeout)
	defer cancel()
	venues, _, err := o.placesFlight.Do(waitCtx, key, func(ctx context.Context) ([]venue.Venue, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.PlacesTimeout)
		defer cancel()
		v, err := o.places.Search(callCtx, req)
		if err != nil {
			return nil, err
		}
		o.caches.Places.Set(ctx, key, v, ttl)
		return v, nil
	})
	done(err)
	if err != nil {
		return placesFetch{}, err
	}
	return placesFetch{venues: venues, key: key, ttl: ttl, fresh: true}, nil
}

// rank scores a provider answer. A ranking lives no longer than the answer
// it was computed from, and a fresh answer always replaces it.
func (o *SearchOrchestrator) rank(f placesFetch, in venue.RankInput) []venue.Venue {
	key := dedup.Key("rank", f.key, in.Key())
	if !f.fresh {
		if v, ok := o.caches.Rank.Get(key); ok {
			return v
		}
	}
	ranked := venue.Rank(f.venues, in)
	o.caches.Rank.Set(key, ranked, f.ttl)
	o.logger.Debug("ranked", zap.Int("venues", len(ranked)), zap.Bool("fresh", f.fresh))
	return ranked
}
