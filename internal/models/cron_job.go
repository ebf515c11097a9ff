package models

import "time"

// CronJob is a scheduled command on one of the team's servers.
type CronJob struct {
	BaseModel

	TeamID   string `gorm:"type:uuid;index;not null" json:"team_id"`
	ServerID string `gorm:"type:uuid;index;not null" json:"server_id"`

	Command     string     `gorm:"not null" json:"command"`
	User        string     `gorm:"default:ops" json:"user"`
	Frequency   string     `json:"frequency"`
	Cron        string     `gorm:"not null" json:"cron"`
	Status      string     `gorm:"default:active" json:"status"`
	NextRunTime *time.Time `json:"next_run_time"`
}
