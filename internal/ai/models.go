package ai

// IntentResult captures the structured output of the intent-extraction call.
// Nullable fields stay pointers so that "not mentioned" survives decoding.
type IntentResult struct {
	// Terms are the normalized food/category terms, e.g. ["ramen"].
	Terms []string `json:"terms"`

	// Category is a single provider-friendly category such as "restaurant".
	Category string `json:"category,omitempty"`

	// Location is the place the user referred to, verbatim. Nil when absent.
	Location *string `json:"location,omitempty"`

	// NearMe is set for "near me" / "nearby" style queries.
	NearMe bool `json:"near_me"`

	// OpenNow: true = require open, false = require closed, null = no constraint.
	OpenNow *bool `json:"open_now"`

	PriceMax  *int     `json:"price_max,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
	Delivery  *bool    `json:"delivery,omitempty"`

	// Language is the BCP 47 code the query is written in.
	Language string `json:"language"`

	// Confidence in [0,1] of the whole parse.
	Confidence float64 `json:"confidence"`

	// Granularity of Location: city, street, landmark or area.
	Granularity string `json:"granularity,omitempty"`

	// AmbiguousTerms lists tokens that read both as a constraint and as a place name.
	AmbiguousTerms []string `json:"ambiguous_terms,omitempty"`

	// LocationCandidates are disambiguation options for an ambiguous location.
	LocationCandidates []string `json:"location_candidates,omitempty"`
}

// NarrationPrompt is the small structured context handed to the narration call.
type NarrationPrompt struct {
	Mode        string `json:"mode"`
	Reason      string `json:"reason"`
	Query       string `json:"query"`
	Language    string `json:"language"`
	ResultCount int    `json:"result_count"`
	TopResult   string `json:"top_result,omitempty"`
	Clarify     bool   `json:"clarify"`
}

// AssistantOutput is the narration call's reply.
type AssistantOutput struct {
	Message  string `json:"message"`
	Question string `json:"question,omitempty"`
}
