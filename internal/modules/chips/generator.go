package chips

import (
	"strconv"

	"scout/internal/modules/intent"
	"scout/internal/modules/mode"
	"scout/internal/modules/venue"
)

// Views.
const (
	ViewList = "list"
	ViewMap  = "map"
)

// Thresholds bound the chip set.
type Thresholds struct {
	// Sort chips appear only with at least SortMinResults results and a
	// parse confidence of at least SortMinConfidence.
	SortMinResults    int     `mapstructure:"sort_min_results"`
	SortMinConfidence float64 `mapstructure:"sort_min_confidence"`
	MaxChips          int     `mapstructure:"max_chips"`
	MaxClarify        int     `mapstructure:"max_clarify"`
}

// DefaultThresholds matches the product defaults.
var DefaultThresholds = Thresholds{SortMinResults: 5, SortMinConfidence: 0.7, MaxChips: 5, MaxClarify: 3}

const (
	budgetPriceLevel = 2
	highRating       = 4.0
	maxCandidates    = 2
)

// Input is what the generator knows about a finished search.
type Input struct {
	Mode        mode.Mode
	Language    string
	ResultCount int
	Confidence  float64
	// Filters are the constraints the search ran with.
	Filters intent.Filters
	// Summary is the open-now count over the unfiltered results.
	Summary venue.OpenNowSummary
	// Data support, computed over the results before constraint filtering.
	HasDelivery bool
	HasPrice    bool
	HasRating   bool
	HasOrigin   bool

	LocationCandidates []string
	Sort               venue.SortKey
	View               string
}

// Generate builds the one chip set of a response for its mode.
func Generate(in Input, th Thresholds) *Set {
	if th.MaxChips <= 0 {
		th.MaxChips = DefaultThresholds.MaxChips
	}
	if th.MaxClarify <= 0 {
		th.MaxClarify = DefaultThresholds.MaxClarify
	}
	switch in.Mode {
	case mode.Recovery:
		return recoverySet(in, th)
	case mode.Clarify:
		return clarifySet(in, th)
	default:
		return normalSet(in, th)
	}
}

func normalSet(in Input, th Thresholds) *Set {
	lang := in.Language
	var active []string

	var filters []Chip
	if in.Summary.Open > 0 || in.Filters.OpenNow == intent.OpenNowRequire {
		filters = append(filters, filterChip(lang, IDOpenNow, "open_now", intent.OpenNowRequire.String()))
		if in.Filters.OpenNow == intent.OpenNowRequire {
			active = append(active, IDOpenNow)
		}
	}
	if in.HasDelivery {
		filters = append(filters, filterChip(lang, IDDelivery, "delivery", "true"))
		if in.Filters.Delivery {
			active = append(active, IDDelivery)
		}
	}
	if in.HasPrice {
		filters = append(filters, filterChip(lang, IDPriceBudget, "price_max", strconv.Itoa(budgetPriceLevel)))
		if in.Filters.PriceMax > 0 && in.Filters.PriceMax <= budgetPriceLevel {
			active = append(active, IDPriceBudget)
		}
	}
	if in.HasRating {
		filters = append(filters, filterChip(lang, IDRatingHigh, "min_rating", strconv.FormatFloat(highRating, 'f', 1, 64)))
		if in.Filters.MinRating >= highRating {
			active = append(active, IDRatingHigh)
		}
	}

	// The chip for the sort the results are in always gets a slot; the
	// other sorts only fill what the filters leave.
	var (
		current Chip
		sorts   []Chip
	)
	if in.ResultCount >= th.SortMinResults && in.Confidence >= th.SortMinConfidence {
		candidates := []Chip{sortChip(lang, IDSortBest, venue.SortBestMatch)}
		if in.HasRating {
			candidates = append(candidates, sortChip(lang, IDSortRating, venue.SortRating))
		}
		if in.HasOrigin {
			candidates = append(candidates, sortChip(lang, IDSortDistance, venue.SortDistance))
		}
		if in.HasPrice {
			candidates = append(candidates, sortChip(lang, IDSortPrice, venue.SortPrice))
		}
		want := sortID(in.Sort)
		for _, c := range candidates {
			if c.Info().ID == want {
				current = c
			} else {
				sorts = append(sorts, c)
			}
		}
		if current == nil {
			current, sorts = candidates[0], candidates[1:]
		}
		active = append(active, current.Info().ID)
	}

	views := []Chip{viewChip(lang, IDViewList, ViewList), viewChip(lang, IDViewMap, ViewMap)}
	if in.View == ViewMap {
		active = append(active, IDViewMap)
	} else {
		active = append(active, IDViewList)
	}

	// Views always fit. Active filters are placed before inactive ones.
	slots := max(th.MaxChips-len(views), 0)
	filterSlots := slots
	if current != nil && filterSlots > 0 {
		filterSlots--
	}
	filters = activeFirst(filters, active)
	if len(filters) > filterSlots {
		filters = filters[:filterSlots]
	}
	rest := filters
	if current != nil && slots > 0 {
		rest = append(rest, current)
	}
	for _, c := range sorts {
		if len(rest) >= slots {
			break
		}
		rest = append(rest, c)
	}
	return NewSet(append(rest, views...), active...)
}

func activeFirst(list []Chip, active []string) []Chip {
	isActive := make(map[string]bool, len(active))
	for _, id := range active {
		isActive[id] = true
	}
	out := make([]Chip, 0, len(list))
	for _, c := range list {
		if isActive[c.Info().ID] {
			out = append(out, c)
		}
	}
	for _, c := range list {
		if !isActive[c.Info().ID] {
			out = append(out, c)
		}
	}
	return out
}

func recoverySet(in Input, th Thresholds) *Set {
	lang := in.Language
	var actions []Chip
	if in.Filters.OpenNow == intent.OpenNowRequire && in.ResultCount == 0 {
		actions = append(actions, RecoveryChip{Base{
			ID: IDClosedNow, Label: Label(lang, IDClosedNow),
			Effect: Effect{Action: ActionSetFilter, Field: "open_now", Value: intent.OpenNowExclude.String()},
		}})
	}
	actions = append(actions,
		RecoveryChip{Base{ID: IDExpandRadius, Label: Label(lang, IDExpandRadius), Effect: Effect{Action: ActionExpandRadius}}},
		RecoveryChip{Base{ID: IDClearFilters, Label: Label(lang, IDClearFilters), Effect: Effect{Action: ActionClearFilters}}},
		RecoveryChip{Base{ID: IDTryNearby, Label: Label(lang, IDTryNearby), Effect: Effect{Action: ActionTryNearby}}},
		sortChip(lang, IDSortRating, venue.SortRating),
	)
	if len(actions) > th.MaxChips-1 {
		actions = actions[:max(th.MaxChips-1, 0)]
	}
	return NewSet(append(actions, viewChip(lang, IDViewMap, ViewMap)))
}

func clarifySet(in Input, th Thresholds) *Set {
	lang := in.Language
	var out []Chip
	for i, c := range in.LocationCandidates {
		if i == maxCandidates {
			break
		}
		out = append(out, ClarifyChip{Base{
			ID:     "location_" + strconv.Itoa(i+1),
			Label:  c,
			Effect: Effect{Action: ActionSetLocation, Field: "location", Value: c},
		}})
	}
	out = append(out,
		ClarifyChip{Base{ID: IDClosest, Label: Label(lang, IDClosest), Effect: Effect{Action: ActionTryNearby}}},
		viewChip(lang, IDViewMap, ViewMap),
	)
	if len(out) > th.MaxClarify {
		out = out[:th.MaxClarify]
	}
	return NewSet(out)
}

func filterChip(lang, id, field, value string) Chip {
	return FilterChip{Base{ID: id, Label: Label(lang, id), Effect: Effect{Action: ActionSetFilter, Field: field, Value: value}}}
}

func sortChip(lang, id string, key venue.SortKey) Chip {
	return SortChip{Base{ID: id, Label: Label(lang, id), Effect: Effect{Action: ActionSort, Value: string(key)}}}
}

func viewChip(lang, id, view string) Chip {
	return ViewChip{Base{ID: id, Label: Label(lang, id), Effect: Effect{Action: ActionView, Value: view}}}
}

func sortID(k venue.SortKey) string {
	switch k {
	case venue.SortDistance:
		return IDSortDistance
	case venue.SortRating:
		return IDSortRating
	case venue.SortPrice:
		return IDSortPrice
	default:
		return IDSortBest
	}
}
