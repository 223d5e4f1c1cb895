package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	NotificationApplication = "application"
	NotificationCredential  = "credential"
	NotificationRemoval     = "removal"
)

// Notification is a write-only fan-out target; the workflow engine never
// reads it back.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	Type      string    `bun:"type,notnull" json:"type"`
	Title     string    `bun:"title,notnull" json:"title"`
	Message   string    `bun:"message,notnull" json:"message"`
	Link      string    `bun:"link" json:"link"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
