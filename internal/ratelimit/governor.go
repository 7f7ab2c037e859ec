// Package ratelimit meters requests per client identifier with a fixed-window
// point budget.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrGovernorFault marks a failure of the governor itself. Callers answer it
// with a server error, never with 429.
var ErrGovernorFault = errors.New("rate governor fault")

// Decision is the outcome of consuming one point.
type Decision struct {
	Accepted        bool
	RemainingPoints int
	MsBeforeNext    int64
}

// RetryAfterSeconds rounds the wait up to whole seconds, at least 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int((d.MsBeforeNext + 999) / 1000)
	return max(secs, 1)
}

// Governor consumes one point for id.
type Governor interface {
	Consume(ctx context.Context, id string) (Decision, error)
}

// Policy is a named budget of Points per Window.
type Policy struct {
	Name   string
	Points int
	Window time.Duration
}

// Default policies.
const (
	SearchPolicyName       = "search"
	AutocompletePolicyName = "autocomplete"
)

// SearchPolicy allows 15 searches per 10 seconds.
func SearchPolicy() Policy {
	return Policy{Name: SearchPolicyName, Points: 15, Window: 10 * time.Second}
}

// AutocompletePolicy allows 30 completions per 10 seconds.
func AutocompletePolicy() Policy {
	return Policy{Name: AutocompletePolicyName, Points: 30, Window: 10 * time.Second}
}

// decide turns the count consumed so far in the window into a Decision.
func decide(p Policy, count int, untilReset time.Duration) Decision {
	ms := max(untilReset.Milliseconds(), 0)
	if count > p.Points {
		return Decision{Accepted: false, RemainingPoints: 0, MsBeforeNext: ms}
	}
	return Decision{Accepted: true, RemainingPoints: p.Points - count, MsBeforeNext: ms}
}
