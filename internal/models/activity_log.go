package models

import "gorm.io/datatypes"

// ActivityLog records a user-visible action inside a team.
type ActivityLog struct {
	BaseModel

	TeamID string `gorm:"type:uuid;index;not null" json:"team_id"`
	UserID string `gorm:"type:uuid;index" json:"user_id"`

	Action      string         `gorm:"not null" json:"action"`
	Description string         `json:"description"`
	Metadata    datatypes.JSON `json:"metadata"`
}
