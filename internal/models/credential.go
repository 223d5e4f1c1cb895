package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialUsed    CredentialStatus = "used"
	CredentialRevoked CredentialStatus = "revoked"
)

// TeamLeadCredential is a single-use, password-protected, expiring grant of
// team-lead authority over every sub-event of one event. Only the bcrypt hash
// of the password is persisted; the plaintext leaves the issue call once and
// is never retrievable again.
type TeamLeadCredential struct {
	bun.BaseModel `bun:"table:team_lead_credentials"`

	ID             string           `bun:"id,pk" json:"id"`
	EventID        string           `bun:"event_id,notnull" json:"event_id"`
	StudentID      string           `bun:"student_id,nullzero" json:"student_id,omitempty"`
	CredentialCode string           `bun:"credential_code,unique,notnull" json:"credential_code"`
	PasswordHash   string           `bun:"password_hash,notnull" json:"-"`
	Status         CredentialStatus `bun:"status,notnull" json:"status"`
	ExpiresAt      time.Time        `bun:"expires_at,notnull" json:"expires_at"`
	CreatedBy      string           `bun:"created_by,notnull" json:"created_by"`
	CreatedAt      time.Time        `bun:"created_at,notnull" json:"created_at"`
	UsedAt         time.Time        `bun:"used_at,nullzero" json:"used_at,omitempty"`
	UsedBy         string           `bun:"used_by,nullzero" json:"used_by,omitempty"`
}

// Expired reports whether the credential's validity window has passed.
func (c *TeamLeadCredential) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// BoundTo returns the pre-bound student, if any.
func (c *TeamLeadCredential) BoundTo() (string, bool) {
	return c.StudentID, c.StudentID != ""
}
