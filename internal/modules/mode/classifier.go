// README: Response mode state machine. One decision per request, made after filtering and grouping.
package mode

// Mode is the response-level state that decides the chip family and the
// assistant's behaviour.
type Mode string

const (
	Normal   Mode = "NORMAL"
	Recovery Mode = "RECOVERY"
	Clarify  Mode = "CLARIFY"
)

// Reason is the machine-checkable failure reason reported in response metadata.
type Reason string

const (
	ReasonNone               Reason = "NONE"
	ReasonNoResults          Reason = "NO_RESULTS"
	ReasonLowConfidence      Reason = "LOW_CONFIDENCE"
	ReasonProviderError      Reason = "PROVIDER_ERROR"
	ReasonGeocodeError       Reason = "GEOCODE_ERROR"
	ReasonQuotaExceeded      Reason = "QUOTA_EXCEEDED"
	ReasonCapacityExceeded   Reason = "CAPACITY_EXCEEDED"
	ReasonAmbiguousQuery     Reason = "AMBIGUOUS_QUERY"
	ReasonLocationUnresolved Reason = "LOCATION_UNRESOLVED"
)

// Reasons lists every reason, in declaration order.
var Reasons = []Reason{
	ReasonNone, ReasonNoResults, ReasonLowConfidence, ReasonProviderError, ReasonGeocodeError,
	ReasonQuotaExceeded, ReasonCapacityExceeded, ReasonAmbiguousQuery, ReasonLocationUnresolved,
}

// IsFailure reports whether r is an upstream failure rather than a property
// of the query or its results.
func (r Reason) IsFailure() bool {
	switch r {
	case ReasonProviderError, ReasonGeocodeError, ReasonQuotaExceeded, ReasonCapacityExceeded:
		return true
	default:
		return false
	}
}

// Thresholds are the tunable cut-offs of the classifier.
type Thresholds struct {
	// RecoveryConfidence: a parse below it is not trusted enough for NORMAL.
	RecoveryConfidence float64 `mapstructure:"recovery_confidence"`
}

// DefaultThresholds matches the product defaults.
var DefaultThresholds = Thresholds{RecoveryConfidence: 0.6}

// Signals are the per-request facts the classifier reads.
type Signals struct {
	// Failure is an upstream failure reason, or ReasonNone.
	Failure Reason
	// ResultCount is the number of results after all filtering.
	ResultCount int
	Confidence  float64
	// Ambiguous is set when the parse left a token that reads both as a
	// constraint and as a place name.
	Ambiguous bool
	// LocationUnresolved is set when the search needs a place and the query
	// did not name one the geocoder could resolve.
	LocationUnresolved bool
}

// Decision is the classifier's output. It is not changed later in the request.
type Decision struct {
	Mode   Mode   `json:"mode"`
	Reason Reason `json:"reason"`
}

// Classify picks the mode. Precedence: upstream failure, then ambiguity or an
// unresolved location, then empty results, then low confidence.
func Classify(s Signals, th Thresholds) Decision {
	switch {
	case s.Failure.IsFailure():
		return Decision{Mode: Recovery, Reason: s.Failure}
	case s.Ambiguous:
		return Decision{Mode: Clarify, Reason: ReasonAmbiguousQuery}
	case s.LocationUnresolved:
		return Decision{Mode: Clarify, Reason: ReasonLocationUnresolved}
	case s.ResultCount == 0:
		return Decision{Mode: Recovery, Reason: ReasonNoResults}
	case s.Confidence < th.RecoveryConfidence:
		return Decision{Mode: Recovery, Reason: ReasonLowConfidence}
	default:
		return Decision{Mode: Normal, Reason: ReasonNone}
	}
}
