// Package batch runs named operations across every eligible tenant, with
// per-tenant transactional isolation: one tenant's failure rolls back that
// tenant's work only and never aborts the run.
package batch

import (
	"time"

	id "custos/pkg/domain"
)

// ItemStatus classifies one item's outcome inside a tenant pass.
type ItemStatus string

const (
	ItemCreated  ItemStatus = "created"
	ItemNotified ItemStatus = "notified"
	ItemSkipped  ItemStatus = "skipped"
)

// ItemResult records what happened to one subject or artifact in a pass.
type ItemResult struct {
	ItemID string
	Status ItemStatus
	Reason string
}

// Counts is what a tenant pass reports back. The Created, Notified, and
// Skipped counters each equal the tally of that status in Items.
type Counts struct {
	Processed int
	Created   int
	Notified  int
	Skipped   int

	Items []ItemResult
}

// RecordCreated notes an item the pass created.
func (c *Counts) RecordCreated(itemID string) {
	c.Created++
	c.Items = append(c.Items, ItemResult{ItemID: itemID, Status: ItemCreated})
}

// RecordNotified notes an item the pass sent a notification for.
func (c *Counts) RecordNotified(itemID string) {
	c.Notified++
	c.Items = append(c.Items, ItemResult{ItemID: itemID, Status: ItemNotified})
}

// RecordSkipped notes an item the pass examined and left alone.
func (c *Counts) RecordSkipped(itemID, reason string) {
	c.Skipped++
	c.Items = append(c.Items, ItemResult{ItemID: itemID, Status: ItemSkipped, Reason: reason})
}

// Add accumulates another set of counts.
func (c *Counts) Add(other Counts) {
	c.Processed += other.Processed
	c.Created += other.Created
	c.Notified += other.Notified
	c.Skipped += other.Skipped
	c.Items = append(c.Items, other.Items...)
}

// TenantOutcome is the result of one tenant's pass.
type TenantOutcome struct {
	TenantID id.TenantID
	Counts   Counts
	Err      error
}

// Report summarizes one run of an operation.
type Report struct {
	Operation  string
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Tenants    []TenantOutcome
	Totals     Counts
	Succeeded  int
	Failed     int
	// Skipped is true when the run lock was held elsewhere and nothing ran.
	Skipped bool
}

// Err returns the first tenant error, or nil when all tenants succeeded.
// Callers that need every failure walk Tenants directly.
func (r *Report) Err() error {
	for _, t := range r.Tenants {
		if t.Err != nil {
			return t.Err
		}
	}
	return nil
}
