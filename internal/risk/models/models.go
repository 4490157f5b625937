// Package models defines the risk register entities scored by the engine.
package models

import (
	"time"

	id "custos/pkg/domain"
)

// RiskStatus is the lifecycle state of a risk register entry.
type RiskStatus string

const (
	RiskStatusOpen      RiskStatus = "Open"
	RiskStatusMitigated RiskStatus = "Mitigated"
	RiskStatusClosed    RiskStatus = "Closed"
	RiskStatusAccepted  RiskStatus = "Accepted"
)

// IsTerminal reports whether the risk is excluded from recalculation.
func (s RiskStatus) IsTerminal() bool {
	return s == RiskStatusClosed || s == RiskStatusAccepted
}

// Tier buckets a residual score.
type Tier string

const (
	TierLow      Tier = "Low"
	TierMedium   Tier = "Medium"
	TierHigh     Tier = "High"
	TierCritical Tier = "Critical"
)

// ImplementationStatus describes how far a mitigating control has been
// rolled out.
type ImplementationStatus string

const (
	ImplementationFull    ImplementationStatus = "Implemented"
	ImplementationPartial ImplementationStatus = "PartiallyImplemented"
	ImplementationStarted ImplementationStatus = "InProgress"
	ImplementationNone    ImplementationStatus = "NotImplemented"
)

// ComplianceStatus describes whether a control currently meets its
// requirement.
type ComplianceStatus string

const (
	ComplianceCompliant       ComplianceStatus = "Compliant"
	ComplianceEffective       ComplianceStatus = "Effective"
	CompliancePartial         ComplianceStatus = "PartiallyCompliant"
	ComplianceEvidenceExpired ComplianceStatus = "EvidenceExpired"
	ComplianceUnknown         ComplianceStatus = ""
)

// ControlLink ties a risk to a mitigating control with its effectiveness
// inputs. Weight nil means 1.0.
type ControlLink struct {
	RiskID         id.RiskID
	ControlName    string
	Active         bool
	Implementation ImplementationStatus
	Compliance     ComplianceStatus
	Weight         *float64
}

// Risk is one risk register entry.
//
// Likelihood and Impact are 1-5; nil values default at scoring time rather
// than being stored, so an operator can tell "never rated" from "rated 3".
type Risk struct {
	ID                   id.RiskID
	TenantID             id.TenantID
	Title                string
	Status               RiskStatus
	Likelihood           *int
	Impact               *int
	InherentScore        int
	ResidualScore        *int
	ResidualTier         Tier
	ControlEffectiveness float64
	OwnerID              id.UserID
	LastRecalculatedAt   *time.Time
	UpdatedAt            time.Time
}

// HasOwner reports whether the risk has someone to notify.
func (r *Risk) HasOwner() bool {
	return !r.OwnerID.IsNil()
}

// Profile is the per-tenant risk aggregate refreshed whenever any risk in
// the tenant is recalculated.
type Profile struct {
	TenantID         id.TenantID
	TotalRisks       int
	CriticalRisks    int
	HighRisks        int
	MediumRisks      int
	LowRisks         int
	AverageResidual  float64
	LastCalculatedAt time.Time
}

// KRIStatus is the threshold state of a key risk indicator.
type KRIStatus string

const (
	KRIStatusNormal   KRIStatus = "Normal"
	KRIStatusWarning  KRIStatus = "Warning"
	KRIStatusCritical KRIStatus = "Critical"
)

// KRICalculation selects which aggregate query feeds an indicator.
type KRICalculation string

const (
	KRIOverdueTasks    KRICalculation = "OverdueTasksCount"
	KRICriticalRisks   KRICalculation = "OpenCriticalRisks"
	KRIExpiredEvidence KRICalculation = "ExpiredEvidenceCount"
	KRIComplianceGap   KRICalculation = "ComplianceGapPercent"
)

// KRIDefinition is a monitored indicator with breach thresholds.
type KRIDefinition struct {
	ID                id.KRIID
	TenantID          id.TenantID
	Name              string
	Calculation       KRICalculation
	CurrentValue      *float64
	WarningThreshold  *float64
	CriticalThreshold *float64
	Status            KRIStatus
	OwnerID           id.UserID
	LastCalculatedAt  *time.Time
}

// HasOwner reports whether the indicator has someone to notify.
func (k *KRIDefinition) HasOwner() bool {
	return !k.OwnerID.IsNil()
}
