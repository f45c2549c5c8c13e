// README: Refinement chips. A closed set of five variants; one chip set per response.
package chips

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownChip is returned when activating an id the set does not hold.
var ErrUnknownChip = errors.New("chips: unknown chip")

// Kind names the variant of a chip.
type Kind string

const (
	KindFilter   Kind = "FILTER"
	KindSort     Kind = "SORT"
	KindView     Kind = "VIEW"
	KindRecovery Kind = "RECOVERY"
	KindClarify  Kind = "CLARIFY"
)

// Effect describes what the client should do when the chip is used.
type Effect struct {
	Action string `json:"action"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Effect actions.
const (
	ActionSetFilter    = "set_filter"
	ActionSort         = "sort"
	ActionView         = "view"
	ActionExpandRadius = "expand_radius"
	ActionClearFilters = "clear_filters"
	ActionTryNearby    = "try_nearby"
	ActionSetLocation  = "set_location"
)

// Base is the data every chip carries.
type Base struct {
	ID     string
	Label  string
	Effect Effect
}

// Info returns the chip's common data.
func (b Base) Info() Base { return b }

// Chip is implemented only by the five variants of this package.
type Chip interface {
	Kind() Kind
	Info() Base
	isChip()
}

// FilterChip toggles one constraint. Any number may be active.
type FilterChip struct{ Base }

// SortChip selects the result order. At most one is active.
type SortChip struct{ Base }

// ViewChip selects list or map. At most one is active.
type ViewChip struct{ Base }

// RecoveryChip is a one-shot action offered when a search came back empty or failed.
type RecoveryChip struct{ Base }

// ClarifyChip is a one-shot answer to a clarification question.
type ClarifyChip struct{ Base }

func (FilterChip) Kind() Kind   { return KindFilter }
func (SortChip) Kind() Kind     { return KindSort }
func (ViewChip) Kind() Kind     { return KindView }
func (RecoveryChip) Kind() Kind { return KindRecovery }
func (ClarifyChip) Kind() Kind  { return KindClarify }

func (FilterChip) isChip()   {}
func (SortChip) isChip()     {}
func (ViewChip) isChip()     {}
func (RecoveryChip) isChip() {}
func (ClarifyChip) isChip()  {}

// selection tells how activating a chip of the variant affects its siblings.
type selection int

const (
	selectOne selection = iota
	selectMany
	momentary
)

func selectionOf(c Chip) selection {
	switch c.(type) {
	case SortChip, ViewChip:
		return selectOne
	case FilterChip:
		return selectMany
	case RecoveryChip, ClarifyChip:
		return momentary
	default:
		panic(fmt.Sprintf("chips: unhandled variant %T", c))
	}
}

// Set is the single chip set of one response, with its activation state.
type Set struct {
	chips  []Chip
	active map[string]bool
}

// NewSet builds a set from chips; ids listed in active start active.
// Activation rules apply, so at most one sort and one view survive.
func NewSet(chips []Chip, active ...string) *Set {
	s := &Set{chips: chips, active: make(map[string]bool)}
	for _, id := range active {
		c, ok := s.find(id)
		if !ok {
			continue
		}
		switch selectionOf(c) {
		case selectOne:
			s.clearKind(c.Kind())
			s.active[id] = true
		case selectMany:
			s.active[id] = true
		}
	}
	return s
}

// Chips returns the chips in display order.
func (s *Set) Chips() []Chip { return append([]Chip(nil), s.chips...) }

// Len returns the number of chips.
func (s *Set) Len() int { return len(s.chips) }

// IsActive reports whether the chip with id is active.
func (s *Set) IsActive(id string) bool { return s.active[id] }

// Active lists the active chip ids of kind, in display order.
func (s *Set) Active(kind Kind) []string {
	var ids []string
	for _, c := range s.chips {
		if c.Kind() == kind && s.active[c.Info().ID] {
			ids = append(ids, c.Info().ID)
		}
	}
	return ids
}

// Activate applies a user tap and returns the chip's effect. Sort and view
// chips replace the active sibling; filter chips toggle on their own;
// recovery and clarify chips only return their effect.
func (s *Set) Activate(id string) (Effect, error) {
	c, ok := s.find(id)
	if !ok {
		return Effect{}, fmt.Errorf("%w: %q", ErrUnknownChip, id)
	}
	switch selectionOf(c) {
	case selectOne:
		s.clearKind(c.Kind())
		s.active[id] = true
	case selectMany:
		if s.active[id] {
			delete(s.active, id)
		} else {
			s.active[id] = true
		}
	}
	return c.Info().Effect, nil
}

func (s *Set) find(id string) (Chip, bool) {
	for _, c := range s.chips {
		if c.Info().ID == id {
			return c, true
		}
	}
	return nil, false
}

func (s *Set) clearKind(kind Kind) {
	for _, c := range s.chips {
		if c.Kind() == kind {
			delete(s.active, c.Info().ID)
		}
	}
}

type chipJSON struct {
	Kind   Kind   `json:"kind"`
	ID     string `json:"id"`
	Label  string `json:"label"`
	Effect Effect `json:"effect"`
	Active bool   `json:"active,omitempty"`
}

// MarshalJSON renders the set as an array of tagged records.
func (s *Set) MarshalJSON() ([]byte, error) {
	out := make([]chipJSON, 0, len(s.chips))
	for _, c := range s.chips {
		b := c.Info()
		out = append(out, chipJSON{Kind: c.Kind(), ID: b.ID, Label: b.Label, Effect: b.Effect, Active: s.active[b.ID]})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a set rendered by MarshalJSON.
func (s *Set) UnmarshalJSON(data []byte) error {
	var in []chipJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	chips := make([]Chip, 0, len(in))
	var active []string
	for _, r := range in {
		b := Base{ID: r.ID, Label: r.Label, Effect: r.Effect}
		switch r.Kind {
		case KindFilter:
			chips = append(chips, FilterChip{b})
		case KindSort:
			chips = append(chips, SortChip{b})
		case KindView:
			chips = append(chips, ViewChip{b})
		case KindRecovery:
			chips = append(chips, RecoveryChip{b})
		case KindClarify:
			chips = append(chips, ClarifyChip{b})
		default:
			return fmt.Errorf("chips: unknown kind %q", r.Kind)
		}
		if r.Active {
			active = append(active, r.ID)
		}
	}
	*s = *NewSet(chips, active...)
	return nil
}
