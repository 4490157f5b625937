// Package rules holds the operator-tunable decision tables for the
// scheduling engine: cadence thresholds, lead times, reminder offsets,
// urgency cut points, SLA hours, freshness windows, and risk tier bounds.
//
// All tables are plain data loaded once at startup and injected into each
// component at construction. Adding a cadence tier or changing an SLA is a
// configuration change, not a code change.
package rules

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules is the full rule set consumed by the engine components.
type Rules struct {
	// Cadence maps a context name ("assessment", "drill", "base") to its
	// threshold table. Unknown cadence codes fall back to the table default.
	Cadence map[string]CadenceTable `yaml:"cadence"`

	// LeadTimes maps a calendar event type to its task lead time in days.
	LeadTimes LeadTimeTable `yaml:"lead_times"`

	// Reminders maps a domain ("assessment", "drill", "calendar") to its
	// offset set and urgency cut points.
	Reminders map[string]ReminderRules `yaml:"reminders"`

	// SLA maps incident severity to response/resolution hours.
	SLA SLATable `yaml:"sla"`

	// Escalation holds the overdue thresholds for action plans.
	Escalation EscalationRules `yaml:"escalation"`

	// Risk holds scoring weights, tier thresholds, and the recalculation
	// freshness window.
	Risk RiskRules `yaml:"risk"`

	// Assessments holds assessment scheduling windows.
	Assessments AssessmentRules `yaml:"assessments"`

	// Calendar holds calendar event and task generation knobs.
	Calendar CalendarRules `yaml:"calendar"`

	// Drills holds drill scheduling knobs.
	Drills DrillRules `yaml:"drills"`

	// Evidence holds the renewal lead window.
	Evidence EvidenceRules `yaml:"evidence"`

	// Review holds quarterly review and policy refresh windows.
	Review ReviewRules `yaml:"review"`
}

// CadenceTable maps a cadence code to the elapsed-days threshold at which a
// subject becomes due. Default applies to unrecognized codes.
type CadenceTable struct {
	Thresholds map[string]int `yaml:"thresholds"`
	Default    int            `yaml:"default"`
}

// LeadTimeTable maps a calendar event type to its lead time in days.
type LeadTimeTable struct {
	ByEventType map[string]int `yaml:"by_event_type"`
	Default     int            `yaml:"default"`
}

// For returns the lead time for an event type, falling back to the default.
func (t LeadTimeTable) For(eventType string) int {
	if days, ok := t.ByEventType[strings.ToUpper(strings.TrimSpace(eventType))]; ok {
		return days
	}
	return t.Default
}

// ReminderRules describes when reminders fire and how urgent they are.
type ReminderRules struct {
	// OffsetDays is the set of days-before-due at which a reminder fires.
	OffsetDays []int `yaml:"offset_days"`
	// HighWithinDays and MediumWithinDays are the urgency cut points:
	// 0 days → critical, ≤ HighWithinDays → high, ≤ MediumWithinDays →
	// medium, else low.
	HighWithinDays   int `yaml:"high_within_days"`
	MediumWithinDays int `yaml:"medium_within_days"`
}

// SLAEntry holds the response and resolution targets for one severity.
type SLAEntry struct {
	ResponseHours   int `yaml:"response_hours"`
	ResolutionHours int `yaml:"resolution_hours"`
}

// SLATable maps incident severity to its SLA entry. Default applies to
// unrecognized severities.
type SLATable struct {
	BySeverity map[string]SLAEntry `yaml:"by_severity"`
	Default    SLAEntry            `yaml:"default"`
}

// EscalationRules holds the overdue thresholds for action-plan escalation.
type EscalationRules struct {
	OverdueAfterDays   int `yaml:"overdue_after_days"`
	CriticalAfterDays  int `yaml:"critical_after_days"`
	OverdueLevel       int `yaml:"overdue_level"`
	CriticalLevel      int `yaml:"critical_level"`
	DrillReviewLagDays int `yaml:"drill_review_lag_days"`
}

// RiskRules holds the scoring constants and recalculation policy.
type RiskRules struct {
	ImplementationWeight float64 `yaml:"implementation_weight"`
	ComplianceWeight     float64 `yaml:"compliance_weight"`
	CriticalThreshold    int     `yaml:"critical_threshold"`
	HighThreshold        int     `yaml:"high_threshold"`
	MediumThreshold      int     `yaml:"medium_threshold"`
	FreshnessDays        int     `yaml:"freshness_days"`
	MaxPerTenantPerRun   int     `yaml:"max_per_tenant_per_run"`
	DefaultLikelihood    int     `yaml:"default_likelihood"`
	DefaultImpact        int     `yaml:"default_impact"`
}

// FreshnessWindow returns the recalculation freshness window as a duration.
func (r RiskRules) FreshnessWindow() time.Duration {
	return time.Duration(r.FreshnessDays) * 24 * time.Hour
}

// AssessmentRules holds the completion windows for generated assessments.
// Monthly cadences get a short window; everything else gets the default.
type AssessmentRules struct {
	WindowMonthlyDays int `yaml:"window_monthly_days"`
	WindowDefaultDays int `yaml:"window_default_days"`
}

// CalendarRules holds calendar event and task generation knobs.
type CalendarRules struct {
	// RenewalHorizonDays is how far ahead expiring frameworks spawn renewal
	// events.
	RenewalHorizonDays int `yaml:"renewal_horizon_days"`
	// TaskDueOffsetDays is how many days before its event a preparation task
	// is due.
	TaskDueOffsetDays int `yaml:"task_due_offset_days"`
}

// DrillRules holds drill scheduling knobs.
type DrillRules struct {
	// ScheduleAheadDays is how far out a newly generated drill is dated.
	// The date rolls forward past weekends.
	ScheduleAheadDays int `yaml:"schedule_ahead_days"`
}

// EvidenceRules holds the evidence renewal lead window.
type EvidenceRules struct {
	RenewalLeadDays int `yaml:"renewal_lead_days"`
}

// ReviewRules holds quarterly review and policy refresh windows.
type ReviewRules struct {
	PolicyReviewWindowDays  int `yaml:"policy_review_window_days"`
	AttestationIntervalDays int `yaml:"attestation_interval_days"`
	AttestationLeadDays     int `yaml:"attestation_lead_days"`
	ReviewTaskLookbackDays  int `yaml:"review_task_lookback_days"`
}

// Default returns the built-in rule set. Operators override via a rules file.
func Default() Rules {
	return Rules{
		Cadence: map[string]CadenceTable{
			"base": {
				Thresholds: map[string]int{
					"CONTINUOUS":  0,
					"DAILY":       1,
					"WEEKLY":      7,
					"MONTHLY":     21,
					"QUARTERLY":   80,
					"SEMI_ANNUAL": 160,
					"ANNUAL":      340,
				},
				Default: 340,
			},
			"assessment": {
				Thresholds: map[string]int{
					"MONTHLY":     28,
					"QUARTERLY":   85,
					"SEMI_ANNUAL": 170,
					"ANNUAL":      350,
				},
				Default: 350,
			},
			"drill": {
				Thresholds: map[string]int{
					"MONTHLY":     25,
					"QUARTERLY":   80,
					"SEMI_ANNUAL": 160,
					"ANNUAL":      340,
				},
				Default: 80,
			},
		},
		LeadTimes: LeadTimeTable{
			ByEventType: map[string]int{
				"AUDIT":         90,
				"CERTIFICATION": 120,
				"RENEWAL":       60,
				"SUBMISSION":    30,
				"REVIEW":        14,
				"ATTESTATION":   21,
			},
			Default: 30,
		},
		Reminders: map[string]ReminderRules{
			"assessment": {OffsetDays: []int{14, 7, 3, 1, 0}, HighWithinDays: 1, MediumWithinDays: 14},
			"drill":      {OffsetDays: []int{14, 7, 3, 1}, HighWithinDays: 1, MediumWithinDays: 14},
			"calendar":   {OffsetDays: []int{90, 60, 30, 14, 7, 3, 1, 0}, HighWithinDays: 3, MediumWithinDays: 14},
		},
		SLA: SLATable{
			BySeverity: map[string]SLAEntry{
				"Critical": {ResponseHours: 4, ResolutionHours: 24},
				"High":     {ResponseHours: 8, ResolutionHours: 48},
				"Medium":   {ResponseHours: 24, ResolutionHours: 120},
			},
			Default: SLAEntry{ResponseHours: 48, ResolutionHours: 168},
		},
		Escalation: EscalationRules{
			OverdueAfterDays:   7,
			CriticalAfterDays:  14,
			OverdueLevel:       2,
			CriticalLevel:      3,
			DrillReviewLagDays: 7,
		},
		Risk: RiskRules{
			ImplementationWeight: 0.4,
			ComplianceWeight:     0.6,
			CriticalThreshold:    20,
			HighThreshold:        12,
			MediumThreshold:      6,
			FreshnessDays:        7,
			MaxPerTenantPerRun:   100,
			DefaultLikelihood:    3,
			DefaultImpact:        3,
		},
		Assessments: AssessmentRules{
			WindowMonthlyDays: 21,
			WindowDefaultDays: 90,
		},
		Calendar: CalendarRules{
			RenewalHorizonDays: 90,
			TaskDueOffsetDays:  7,
		},
		Drills:   DrillRules{ScheduleAheadDays: 14},
		Evidence: EvidenceRules{RenewalLeadDays: 21},
		Review: ReviewRules{
			PolicyReviewWindowDays:  30,
			AttestationIntervalDays: 365,
			AttestationLeadDays:     30,
			ReviewTaskLookbackDays:  30,
		},
	}
}

// Load reads a rules file and overlays it on the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (Rules, error) {
	rules := Default()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate rejects rule sets that would make the engine misbehave silently.
func (r Rules) Validate() error {
	if len(r.Cadence) == 0 {
		return fmt.Errorf("rules: at least one cadence table is required")
	}
	for name, table := range r.Cadence {
		if table.Default < 0 {
			return fmt.Errorf("rules: cadence table %q has negative default", name)
		}
		for code, days := range table.Thresholds {
			if days < 0 {
				return fmt.Errorf("rules: cadence table %q code %q has negative threshold", name, code)
			}
		}
	}
	if r.Risk.ImplementationWeight+r.Risk.ComplianceWeight == 0 {
		return fmt.Errorf("rules: risk scoring weights must not both be zero")
	}
	if r.Risk.CriticalThreshold <= r.Risk.HighThreshold || r.Risk.HighThreshold <= r.Risk.MediumThreshold {
		return fmt.Errorf("rules: risk tier thresholds must be strictly descending")
	}
	for domain, rem := range r.Reminders {
		for _, offset := range rem.OffsetDays {
			if offset < 0 {
				return fmt.Errorf("rules: reminder domain %q has negative offset", domain)
			}
		}
	}
	return nil
}

// CadenceFor returns the named cadence table, falling back to "base".
func (r Rules) CadenceFor(context string) CadenceTable {
	if table, ok := r.Cadence[context]; ok {
		return table
	}
	return r.Cadence["base"]
}

// RemindersFor returns the named reminder rules, falling back to "calendar".
func (r Rules) RemindersFor(domain string) ReminderRules {
	if rem, ok := r.Reminders[domain]; ok {
		return rem
	}
	return r.Reminders["calendar"]
}
