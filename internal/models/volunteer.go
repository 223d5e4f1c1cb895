package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Volunteer is an approved, currently-active membership of a user in one
// sub-event's team. The (sub_event_id, user_id) pair is unique.
type Volunteer struct {
	bun.BaseModel `bun:"table:volunteers"`

	ID         string    `bun:"id,pk" json:"id"`
	SubEventID string    `bun:"sub_event_id,notnull" json:"sub_event_id"`
	UserID     string    `bun:"user_id,notnull" json:"user_id"`
	Role       string    `bun:"role,notnull" json:"role"`
	AssignedAt time.Time `bun:"assigned_at,notnull" json:"assigned_at"`
}

// VolunteerRemoval is the append-only audit trail of membership ejections.
// Rows are never updated or deleted.
type VolunteerRemoval struct {
	bun.BaseModel `bun:"table:volunteer_removals"`

	ID          string    `bun:"id,pk" json:"id"`
	VolunteerID string    `bun:"volunteer_id,notnull" json:"volunteer_id"`
	SubEventID  string    `bun:"sub_event_id,notnull" json:"sub_event_id"`
	RemovedBy   string    `bun:"removed_by,notnull" json:"removed_by"`
	Reason      string    `bun:"reason,notnull" json:"reason"`
	RemovedAt   time.Time `bun:"removed_at,notnull" json:"removed_at"`
}
