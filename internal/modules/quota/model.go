package quota

import "errors"

// ErrInsufficientTokens is returned when a user has no searches remaining for the current day.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultDaily is the number of searches granted per day.
const DefaultDaily = 200

// dayLayout keys the allowance window.
const dayLayout = "2006-01-02"
