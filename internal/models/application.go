package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
	// StatusRemoved marks a formerly approved application invalidated by a
	// later reassignment or removal. Distinct from rejected, which means the
	// grant never happened.
	StatusRemoved ApplicationStatus = "removed"
)

// CanTransitionTo enforces the legal status transitions. The only path back to
// pending is the resubmission of a rejected event application, which reuses
// the same row.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusRejected:
		return next == StatusPending
	case StatusApproved:
		return next == StatusRejected || next == StatusRemoved
	default:
		return false
	}
}

// Terminal reports whether the status can no longer lead to a grant. Pending
// and approved rows count as active for the one-active-row-per-pair invariant.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusRemoved
}

// EventApplication is a creator's request to become the delegated owner of an
// event. At most one non-terminal row per (event, applicant) pair; a rejected
// row is reopened in place on resubmission.
type EventApplication struct {
	bun.BaseModel `bun:"table:event_applications"`

	ID         string            `bun:"id,pk" json:"id"`
	EventID    string            `bun:"event_id,notnull" json:"event_id"`
	CreatorID  string            `bun:"creator_id,notnull" json:"creator_id"`
	Message    string            `bun:"message" json:"message"`
	Status     ApplicationStatus `bun:"status,notnull" json:"status"`
	AppliedAt  time.Time         `bun:"applied_at,notnull" json:"applied_at"`
	ReviewedAt time.Time         `bun:"reviewed_at,nullzero" json:"reviewed_at,omitempty"`
	ReviewedBy string            `bun:"reviewed_by,nullzero" json:"reviewed_by,omitempty"`
}

// TeamLeadApplication is a user's request for the team-lead slot of one
// sub-event. Resubmission after rejection inserts a fresh row, keeping the
// rejected one as history.
type TeamLeadApplication struct {
	bun.BaseModel `bun:"table:team_lead_applications"`

	ID         string            `bun:"id,pk" json:"id"`
	UserID     string            `bun:"user_id,notnull" json:"user_id"`
	SubEventID string            `bun:"sub_event_id,notnull" json:"sub_event_id"`
	Message    string            `bun:"message" json:"message"`
	Status     ApplicationStatus `bun:"status,notnull" json:"status"`
	Feedback   string            `bun:"feedback,nullzero" json:"feedback,omitempty"`
	CreatedAt  time.Time         `bun:"created_at,notnull" json:"created_at"`
	ReviewedAt time.Time         `bun:"reviewed_at,nullzero" json:"reviewed_at,omitempty"`
	ReviewedBy string            `bun:"reviewed_by,nullzero" json:"reviewed_by,omitempty"`
}
