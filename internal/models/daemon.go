package models

// Daemon is a long-running supervised process on one of the team's servers.
type Daemon struct {
	BaseModel

	TeamID   string `gorm:"type:uuid;index;not null" json:"team_id"`
	ServerID string `gorm:"type:uuid;index;not null" json:"server_id"`

	Command   string `gorm:"not null" json:"command"`
	User      string `gorm:"default:ops" json:"user"`
	Directory string `json:"directory"`
	Processes int    `gorm:"default:1" json:"processes"`
	Status    string `gorm:"default:active" json:"status"`
}
