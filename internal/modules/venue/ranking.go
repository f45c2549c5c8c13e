package venue

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"scout/internal/types"
)

// Weights of the ranking score components. They need not sum to one.
type Weights struct {
	Rating    float64 `mapstructure:"rating"`
	Distance  float64 `mapstructure:"distance"`
	Relevance float64 `mapstructure:"relevance"`
}

// DefaultWeights favours quality, then proximity.
var DefaultWeights = Weights{Rating: 0.5, Distance: 0.3, Relevance: 0.2}

const (
	// Bayesian prior: a venue with few ratings is pulled toward priorMean.
	priorMean   = 3.5
	priorWeight = 20.0
	// Distance at which the proximity component halves.
	distanceHalfKm = 2.0
)

// RankInput carries the request-level inputs of ranking.
type RankInput struct {
	Origin  *types.Point
	Terms   []string
	Weights Weights
}

// Key is a stable textual form used in the ranking cache key.
func (in RankInput) Key() string {
	origin := "-"
	if in.Origin != nil {
		origin = fmt.Sprintf("%.4f,%.4f", in.Origin.Lat, in.Origin.Lng)
	}
	return fmt.Sprintf("%s|%s|%.2f/%.2f/%.2f", origin, strings.Join(in.Terms, ","),
		in.Weights.Rating, in.Weights.Distance, in.Weights.Relevance)
}

// Rank returns a scored copy of venues, best first. Equal scores are ordered
// by place id so the output is deterministic.
func Rank(venues []Venue, in RankInput) []Venue {
	w := in.Weights
	if w == (Weights{}) {
		w = DefaultWeights
	}
	terms := make([]string, 0, len(in.Terms))
	for _, t := range in.Terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}

	out := make([]Venue, len(venues))
	for i, v := range venues {
		proximity := 0.5
		if in.Origin != nil {
			v.DistanceKm = DistanceKm(*in.Origin, v.Location)
			proximity = distanceHalfKm / (distanceHalfKm + v.DistanceKm)
		}
		v.Score = round4(w.Rating*bayesianRating(v) + w.Distance*proximity + w.Relevance*relevance(v, terms))
		out[i] = v
	}

	slices.SortStableFunc(out, func(a, b Venue) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.PlaceID, b.PlaceID)
	})
	return out
}

// bayesianRating is the smoothed rating scaled to [0,1].
func bayesianRating(v Venue) float64 {
	if v.Rating <= 0 {
		return priorMean / 5
	}
	n := float64(v.RatingCount)
	return (priorWeight*priorMean + n*v.Rating) / (priorWeight + n) / 5
}

// relevance is the share of terms found in the venue's name or types.
func relevance(v Venue, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	name := strings.ToLower(v.Name)
	hits := 0
	for _, t := range terms {
		if strings.Contains(name, t) || v.HasType(t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func round4(f float64) float64 { return math.Round(f*1e4) / 1e4 }

// SortKey orders an already ranked result list.
type SortKey string

const (
	SortBestMatch SortKey = "best_match"
	SortDistance  SortKey = "distance"
	SortRating    SortKey = "rating"
	SortPrice     SortKey = "price"
)

// ParseSortKey returns the key and whether it is known.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortBestMatch, SortDistance, SortRating, SortPrice:
		return k, true
	case "":
		return SortBestMatch, true
	default:
		return SortBestMatch, false
	}
}

// Sort returns a copy of ranked venues reordered by key. Best match keeps the
// ranking order; venues lacking the sort attribute go last.
func Sort(venues []Venue, key SortKey) []Venue {
	out := append([]Venue(nil), venues...)
	var less func(a, b Venue) int
	switch key {
	case SortDistance:
		less = func(a, b Venue) int { return cmp.Compare(a.DistanceKm, b.DistanceKm) }
	case SortRating:
		less = func(a, b Venue) int {
			if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
				return c
			}
			return cmp.Compare(b.RatingCount, a.RatingCount)
		}
	case SortPrice:
		less = func(a, b Venue) int {
			pa, pb := a.PriceLevel, b.PriceLevel
			if pa == 0 {
				pa = math.MaxInt
			}
			if pb == 0 {
				pb = math.MaxInt
			}
			return cmp.Compare(pa, pb)
		}
	default:
		return out
	}
	slices.SortStableFunc(out, less)
	return out
}
