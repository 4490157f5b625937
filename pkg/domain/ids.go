// Package domain defines the typed identifiers shared across the engine.
//
// Every aggregate is addressed by its own UUID-backed type so that a tenant
// id can never be passed where a risk id is expected. Parse helpers enforce
// the invariant that ids are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "custos/pkg/domain-errors"
)

type (
	// TenantID identifies an isolated customer organization.
	TenantID uuid.UUID

	// SubjectID identifies a recurring compliance obligation.
	SubjectID uuid.UUID

	// ArtifactID identifies a generated work item.
	ArtifactID uuid.UUID

	// RiskID identifies a risk register entry.
	RiskID uuid.UUID

	// KRIID identifies a key risk indicator definition.
	KRIID uuid.UUID

	// IncidentID identifies an incident.
	IncidentID uuid.UUID

	// PlanID identifies a remediation action plan.
	PlanID uuid.UUID

	// UserID identifies a tenant user (owner, assignee, recipient).
	UserID uuid.UUID
)

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID(raw)
	return TenantID(u), err
}

func ParseSubjectID(raw string) (SubjectID, error) {
	u, err := parseUUID(raw)
	return SubjectID(u), err
}

func ParseArtifactID(raw string) (ArtifactID, error) {
	u, err := parseUUID(raw)
	return ArtifactID(u), err
}

func ParseRiskID(raw string) (RiskID, error) {
	u, err := parseUUID(raw)
	return RiskID(u), err
}

func ParseKRIID(raw string) (KRIID, error) {
	u, err := parseUUID(raw)
	return KRIID(u), err
}

func ParseIncidentID(raw string) (IncidentID, error) {
	u, err := parseUUID(raw)
	return IncidentID(u), err
}

func ParsePlanID(raw string) (PlanID, error) {
	u, err := parseUUID(raw)
	return PlanID(u), err
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw)
	return UserID(u), err
}

func NewTenantID() TenantID     { return TenantID(uuid.New()) }
func NewSubjectID() SubjectID   { return SubjectID(uuid.New()) }
func NewArtifactID() ArtifactID { return ArtifactID(uuid.New()) }
func NewRiskID() RiskID         { return RiskID(uuid.New()) }
func NewKRIID() KRIID           { return KRIID(uuid.New()) }
func NewIncidentID() IncidentID { return IncidentID(uuid.New()) }
func NewPlanID() PlanID         { return PlanID(uuid.New()) }
func NewUserID() UserID         { return UserID(uuid.New()) }

func (id TenantID) String() string   { return uuid.UUID(id).String() }
func (id SubjectID) String() string  { return uuid.UUID(id).String() }
func (id ArtifactID) String() string { return uuid.UUID(id).String() }
func (id RiskID) String() string     { return uuid.UUID(id).String() }
func (id KRIID) String() string      { return uuid.UUID(id).String() }
func (id IncidentID) String() string { return uuid.UUID(id).String() }
func (id PlanID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ArtifactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RiskID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id KRIID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id IncidentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PlanID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
