// Package policy decides how the security monitor reacts to an incident:
// whether it raises an alert and how long the cooldown is armed for. The
// default static policy treats every incident kind with the same severity.
package policy

import (
	"context"
	"time"
)

// Input describes one incident to a policy. Kind is the incident kind's
// string form so policies stay decoupled from the monitor's types.
type Input struct {
	Kind       string
	DetectedAt time.Time
}

// Decision is a policy's verdict for one incident.
type Decision struct {
	// Raise arms (or re-arms) the alert phase.
	Raise bool
	// Cooldown overrides the monitor's default when positive.
	Cooldown time.Duration
}

type Policy interface {
	Decide(ctx context.Context, in Input) (Decision, error)
}

// StaticPolicy raises on every incident with a uniform cooldown.
type StaticPolicy struct {
	Cooldown time.Duration
}

func (p StaticPolicy) Decide(_ context.Context, _ Input) (Decision, error) {
	return Decision{Raise: true, Cooldown: p.Cooldown}, nil
}
