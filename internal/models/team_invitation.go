package models

import "time"

// TeamInvitation is a pending offer to join a team. Delivery of the
// invitation email happens outside this service.
type TeamInvitation struct {
	BaseModel

	TeamID string `gorm:"type:uuid;index;not null" json:"team_id"`

	Email     string    `gorm:"index;not null" json:"email"`
	Role      string    `json:"role"`
	TokenHash string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
