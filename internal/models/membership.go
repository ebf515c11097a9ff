package models

import "time"

// Membership joins a user to a team with an opaque role string. The owner
// never has a membership row; the "owner" role is derived from Team.UserID.
type Membership struct {
	UserID string `gorm:"primaryKey;type:uuid" json:"user_id"`
	TeamID string `gorm:"primaryKey;type:uuid" json:"team_id"`

	Role string `json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the join table aligned with the many2many declarations on
// User and Team.
func (Membership) TableName() string { return "memberships" }
