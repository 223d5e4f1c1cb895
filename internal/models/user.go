package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleStudent  Role = "student"
	RoleTeamLead Role = "teamlead"
	RoleCreator  Role = "creator"
	RoleAdmin    Role = "admin"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:"id,pk" json:"id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	FullName  string    `bun:"full_name,notnull" json:"full_name"`
	Role      Role      `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
