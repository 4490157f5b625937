// Package models defines cadence subjects: anything carrying a recurring
// compliance obligation.
package models

import (
	"time"

	id "custos/pkg/domain"
)

// Kind classifies what the recurring obligation attaches to.
type Kind string

const (
	KindFramework      Kind = "framework"
	KindContinuityPlan Kind = "continuity_plan"
	KindPolicy         Kind = "policy"
	KindEvidencePack   Kind = "evidence_pack"
	KindControl        Kind = "control"
)

// Subject is one recurring obligation. LastActivityAt is nil when the
// obligation has never been fulfilled; the cadence resolver treats that as
// maximally overdue.
//
// The engine never creates or deletes subjects. It reads them, judges
// due-ness, and advances the bookkeeping timestamps when artifacts complete
// elsewhere.
type Subject struct {
	ID       id.SubjectID
	TenantID id.TenantID
	Kind     Kind
	Name     string
	// Code is the human reference (framework code, policy number).
	Code        string
	CadenceCode string
	Active      bool
	OwnerID     id.UserID

	LastActivityAt *time.Time

	// Kind-specific timestamps. NextReviewAt drives policy refresh,
	// ValidUntil drives evidence expiry, LastAttestationAt drives annual
	// attestations, NextAssessmentAt drives framework renewal events.
	NextReviewAt      *time.Time
	ValidUntil        *time.Time
	LastAttestationAt *time.Time
	NextAssessmentAt  *time.Time

	// ReviewReminderSent is the one-shot guard for policy review nudges.
	// Cleared externally when the review completes.
	ReviewReminderSent bool

	// RenewalScheduled is the one-shot guard for framework renewal events.
	RenewalScheduled bool

	// Control-kind subjects carry compliance posture for gap reporting.
	Applicable       bool
	ComplianceStatus string

	UpdatedAt time.Time
}

// HasOwner reports whether the subject has a designated owner to notify.
func (s *Subject) HasOwner() bool {
	return !s.OwnerID.IsNil()
}
