package models

import "gorm.io/datatypes"

// SourceControl is a team's integration with a source hosting provider.
type SourceControl struct {
	BaseModel

	TeamID string `gorm:"type:uuid;index;not null" json:"team_id"`

	Provider    string         `gorm:"not null" json:"provider"`
	Name        string         `gorm:"not null" json:"name"`
	Credentials datatypes.JSON `json:"-"`
}
