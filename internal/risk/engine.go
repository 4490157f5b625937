// Package risk implements residual risk scoring and key risk indicator
// evaluation.
package risk

import (
	"math"
	"strings"
	"time"

	"custos/internal/notify"
	"custos/internal/risk/models"
	"custos/internal/rules"
)

// Result is the outcome of recalculating one risk.
type Result struct {
	InherentScore int
	ResidualScore int
	Tier          models.Tier
	Effectiveness float64

	// Notify is set when the residual score rose into High or Critical.
	Notify  bool
	Urgency notify.Urgency
}

// Engine computes risk scores against injected rule constants. It is pure;
// callers persist results and emit notifications.
type Engine struct {
	rules rules.RiskRules
}

// NewEngine builds a scoring engine over the given rules.
func NewEngine(r rules.RiskRules) Engine {
	return Engine{rules: r}
}

// NeedsRecalculation reports whether a risk is stale enough to rescore.
// Terminal risks are never recalculated; unscored risks always are.
func (e Engine) NeedsRecalculation(r models.Risk, now time.Time) bool {
	if r.Status.IsTerminal() {
		return false
	}
	if r.LastRecalculatedAt == nil {
		return true
	}
	return now.Sub(*r.LastRecalculatedAt) > e.rules.FreshnessWindow()
}

// Recalculate scores a risk from its likelihood, impact, and mitigating
// controls.
//
// Effectiveness is the weighted average of per-control scores; a risk with
// no active mitigating controls has zero effectiveness, not neutral, so its
// residual equals its inherent score.
func (e Engine) Recalculate(r models.Risk, controls []models.ControlLink) Result {
	likelihood := valueOr(r.Likelihood, e.rules.DefaultLikelihood)
	impact := valueOr(r.Impact, e.rules.DefaultImpact)
	inherent := likelihood * impact

	effectiveness := e.Effectiveness(controls)
	residual := int(math.Ceil(float64(inherent) * (1 - effectiveness)))

	out := Result{
		InherentScore: inherent,
		ResidualScore: residual,
		Tier:          e.TierFor(residual),
		Effectiveness: effectiveness,
	}

	increased := r.ResidualScore == nil || residual > *r.ResidualScore
	if increased && residual >= e.rules.HighThreshold {
		out.Notify = true
		out.Urgency = notify.UrgencyHigh
		if out.Tier == models.TierCritical {
			out.Urgency = notify.UrgencyCritical
		}
	}
	return out
}

// Effectiveness returns the weighted control effectiveness in [0, 1].
func (e Engine) Effectiveness(controls []models.ControlLink) float64 {
	var weighted, total float64
	for _, c := range controls {
		if !c.Active {
			continue
		}
		score := e.rules.ImplementationWeight*implementationScore(c.Implementation) +
			e.rules.ComplianceWeight*complianceScore(c.Compliance)
		weight := 1.0
		if c.Weight != nil {
			weight = *c.Weight
		}
		weighted += score * weight
		total += weight
	}
	if total == 0 {
		return 0.0
	}
	return weighted / total
}

// TierFor buckets a residual score into a tier.
func (e Engine) TierFor(residual int) models.Tier {
	switch {
	case residual >= e.rules.CriticalThreshold:
		return models.TierCritical
	case residual >= e.rules.HighThreshold:
		return models.TierHigh
	case residual >= e.rules.MediumThreshold:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// Aggregate computes a tenant profile from its active risks.
func Aggregate(risks []models.Risk, now time.Time) models.Profile {
	p := models.Profile{LastCalculatedAt: now}
	var sum float64
	for _, r := range risks {
		if r.Status == models.RiskStatusClosed {
			continue
		}
		p.TotalRisks++
		switch r.ResidualTier {
		case models.TierCritical:
			p.CriticalRisks++
		case models.TierHigh:
			p.HighRisks++
		case models.TierMedium:
			p.MediumRisks++
		default:
			p.LowRisks++
		}
		if r.ResidualScore != nil {
			sum += float64(*r.ResidualScore)
		}
	}
	if p.TotalRisks > 0 {
		p.AverageResidual = sum / float64(p.TotalRisks)
	}
	return p
}

func implementationScore(s models.ImplementationStatus) float64 {
	switch normalizeStatus(string(s)) {
	case "FULLY_IMPLEMENTED", "FULLYIMPLEMENTED", "IMPLEMENTED":
		return 1.0
	case "PARTIALLY_IMPLEMENTED", "PARTIALLYIMPLEMENTED":
		return 0.5
	case "IN_PROGRESS", "INPROGRESS":
		return 0.3
	default:
		return 0.0
	}
}

func complianceScore(s models.ComplianceStatus) float64 {
	switch normalizeStatus(string(s)) {
	case "COMPLIANT", "EFFECTIVE":
		return 1.0
	case "PARTIALLY_COMPLIANT", "PARTIALLYCOMPLIANT":
		return 0.6
	case "EVIDENCE_EXPIRED", "EVIDENCEEXPIRED":
		return 0.2
	default:
		// Unknown or unset compliance is neutral, not zero.
		return 0.5
	}
}

func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func valueOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
