package models

import "gorm.io/datatypes"

// Team is the tenant boundary. Every tenant-scoped entity carries the
// owning team's identifier.
type Team struct {
	BaseModel

	UserID string `gorm:"type:uuid;index;not null" json:"user_id"`
	Owner  *User  `gorm:"foreignKey:UserID" json:"owner,omitempty"`

	Name         string         `gorm:"not null" json:"name"`
	PersonalTeam bool           `gorm:"default:false" json:"personal_team"`
	Settings     datatypes.JSON `json:"settings"`

	Users []User `gorm:"many2many:memberships;" json:"users,omitempty"`

	ServerProviders []ServerProvider `gorm:"foreignKey:TeamID" json:"server_providers,omitempty"`
	Servers         []Server         `gorm:"foreignKey:TeamID" json:"servers,omitempty"`
	SshKeys         []SshKey         `gorm:"foreignKey:TeamID" json:"ssh_keys,omitempty"`
	SourceControls  []SourceControl  `gorm:"foreignKey:TeamID" json:"source_controls,omitempty"`
	ActivityLogs    []ActivityLog    `gorm:"foreignKey:TeamID" json:"activity_logs,omitempty"`
	Databases       []Database       `gorm:"foreignKey:TeamID" json:"databases,omitempty"`
	CronJobs        []CronJob        `gorm:"foreignKey:TeamID" json:"cron_jobs,omitempty"`
	Daemons         []Daemon         `gorm:"foreignKey:TeamID" json:"daemons,omitempty"`
	Invitations     []TeamInvitation `gorm:"foreignKey:TeamID" json:"invitations,omitempty"`
}
