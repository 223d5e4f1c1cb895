package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is owned by exactly one creator at a time. AssignedCreatorID is the
// delegated-owner slot and is only ever written through an approved
// EventApplication.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                string    `bun:"id,pk" json:"id"`
	Title             string    `bun:"title,notnull" json:"title"`
	CreatorID         string    `bun:"creator_id,notnull" json:"creator_id"`
	AssignedCreatorID string    `bun:"assigned_creator_id,nullzero" json:"assigned_creator_id,omitempty"`
	Status            string    `bun:"status,notnull" json:"status"`
	CreatedAt         time.Time `bun:"created_at,notnull" json:"created_at"`
}

// OwnedBy reports whether userID currently holds authority over the event,
// either as the original creator or the delegated one.
func (e *Event) OwnedBy(userID string) bool {
	return e.CreatorID == userID || (e.AssignedCreatorID != "" && e.AssignedCreatorID == userID)
}

// SubEvent carries the single team-lead ownership slot the team-lead workflow
// contends over. TeamLeadID empty means the slot is open.
type SubEvent struct {
	bun.BaseModel `bun:"table:sub_events"`

	ID         string    `bun:"id,pk" json:"id"`
	EventID    string    `bun:"event_id,notnull" json:"event_id"`
	Title      string    `bun:"title,notnull" json:"title"`
	TeamLeadID string    `bun:"team_lead_id,nullzero" json:"team_lead_id,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}
