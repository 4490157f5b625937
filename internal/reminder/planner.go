// Package reminder decides whether a reminder fires for an upcoming due
// date, and at what urgency.
package reminder

import (
	"time"

	"custos/internal/notify"
	"custos/internal/rules"
)

// Decision is the outcome of one reminder evaluation.
type Decision struct {
	Fire          bool
	DaysRemaining int
	Urgency       notify.Urgency
}

// Planner evaluates reminder decisions against one injected offset set and
// urgency cut points. It holds no mutable state; the caller owns the
// last-sent bookkeeping.
type Planner struct {
	offsets map[int]struct{}
	rules   rules.ReminderRules
}

// NewPlanner builds a planner for one reminder domain.
func NewPlanner(r rules.ReminderRules) Planner {
	offsets := make(map[int]struct{}, len(r.OffsetDays))
	for _, d := range r.OffsetDays {
		offsets[d] = struct{}{}
	}
	return Planner{offsets: offsets, rules: r}
}

// Plan decides whether a reminder fires today for the given due date.
// lastSent is the timestamp of the previous reminder, nil if none was ever
// sent. At most one reminder fires per calendar day per artifact: a lastSent
// on the same day as today suppresses the send regardless of offset.
func (p Planner) Plan(due, today time.Time, lastSent *time.Time) Decision {
	days := daysBetween(today, due)
	decision := Decision{DaysRemaining: days, Urgency: p.Urgency(days)}

	if _, ok := p.offsets[days]; !ok {
		return decision
	}
	if lastSent != nil && sameDay(*lastSent, today) {
		return decision
	}
	decision.Fire = true
	return decision
}

// Urgency maps days-remaining to a notification urgency. The mapping is
// monotonic: fewer days remaining never lowers the urgency.
func (p Planner) Urgency(daysRemaining int) notify.Urgency {
	switch {
	case daysRemaining <= 0:
		return notify.UrgencyCritical
	case daysRemaining <= p.rules.HighWithinDays:
		return notify.UrgencyHigh
	case daysRemaining <= p.rules.MediumWithinDays:
		return notify.UrgencyMedium
	default:
		return notify.UrgencyLow
	}
}

func daysBetween(from, to time.Time) int {
	fromMidnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toMidnight := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toMidnight.Sub(fromMidnight).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
