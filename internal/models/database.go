package models

import "gorm.io/datatypes"

// Database is a managed database instance on one of the team's servers.
type Database struct {
	BaseModel

	TeamID   string `gorm:"type:uuid;index;not null" json:"team_id"`
	ServerID string `gorm:"type:uuid;index;not null" json:"server_id"`

	Name          string         `gorm:"not null" json:"name"`
	Status        string         `gorm:"default:active" json:"status"`
	DatabaseUsers datatypes.JSON `json:"database_users"`
}
