// Package cadence decides whether a recurring compliance subject is due for
// its next occurrence.
package cadence

import (
	"strings"
	"time"

	"custos/internal/rules"
)

// neverDays stands in for "no prior activity" so a subject with no history
// is due under every threshold.
const neverDays = 100000

// Resolver answers due-ness questions against one injected threshold table.
// It is a pure value; construct one per scheduling context (assessment,
// drill, base) from the rule set.
type Resolver struct {
	table rules.CadenceTable
}

// NewResolver builds a resolver over the given threshold table.
func NewResolver(table rules.CadenceTable) Resolver {
	return Resolver{table: table}
}

// IsDue reports whether a subject with the given cadence code is due, given
// its last activity timestamp. A nil lastActivity means the subject has never
// been acted on and is always due. Unrecognized codes use the table default
// rather than failing, so one bad record cannot abort a batch.
func (r Resolver) IsDue(code string, lastActivity *time.Time, now time.Time) bool {
	return r.ElapsedDays(lastActivity, now) >= r.ThresholdDays(code)
}

// ThresholdDays returns the due threshold for a cadence code.
func (r Resolver) ThresholdDays(code string) int {
	if days, ok := r.table.Thresholds[normalize(code)]; ok {
		return days
	}
	return r.table.Default
}

// ElapsedDays returns whole days since lastActivity, or an effectively
// infinite value when the subject has no history.
func (r Resolver) ElapsedDays(lastActivity *time.Time, now time.Time) int {
	if lastActivity == nil {
		return neverDays
	}
	elapsed := now.Sub(*lastActivity)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
