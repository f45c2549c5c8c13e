package venue

import "scout/internal/modules/intent"

// OpenNowResult is the outcome of the open-now stage.
type OpenNowResult struct {
	Kept []Venue
	// Summary is computed over the input, before any filtering.
	Summary OpenNowSummary
	// Derived is true when the constraint was applied locally because the
	// provider cannot express it (closed now).
	Derived bool
}

// ApplyOpenNow applies the tri-state open-now constraint to the provider's
// results:
//   - Unset keeps everything.
//   - Require was sent upstream; venues the provider still reports as closed are dropped.
//   - Exclude was not sent upstream; only venues reported exactly closed are kept.
func ApplyOpenNow(filter intent.OpenNow, venues []Venue) OpenNowResult {
	res := OpenNowResult{Summary: Summarize(venues)}

	switch filter {
	case intent.OpenNowRequire:
		res.Kept = keep(venues, func(v Venue) bool { return v.OpenNow != OpenStateClosed })
	case intent.OpenNowExclude:
		res.Kept = keep(venues, func(v Venue) bool { return v.OpenNow == OpenStateClosed })
		res.Derived = true
	default:
		res.Kept = append([]Venue(nil), venues...)
	}
	return res
}

// ApplyConstraints drops venues that fail the non-open-now filters. Venues
// with no reported price level are kept under a price cap.
func ApplyConstraints(f intent.Filters, venues []Venue) []Venue {
	return keep(venues, func(v Venue) bool {
		if f.PriceMax > 0 && v.PriceLevel > f.PriceMax {
			return false
		}
		if f.MinRating > 0 && v.Rating < f.MinRating {
			return false
		}
		if f.Delivery && !v.Delivery {
			return false
		}
		return true
	})
}

func keep(venues []Venue, pred func(Venue) bool) []Venue {
	out := make([]Venue, 0, len(venues))
	for _, v := range venues {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}
