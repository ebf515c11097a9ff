package models

import (
	"time"

	"gorm.io/datatypes"
)

// Server represents a managed host owned by a team.
type Server struct {
	BaseModel

	TeamID           string  `gorm:"type:uuid;index;not null" json:"team_id"`
	ServerProviderID *string `gorm:"type:uuid" json:"server_provider_id"`

	Name             string `gorm:"not null" json:"name"`
	IPAddress        string `gorm:"not null" json:"ip_address"`
	PrivateIPAddress string `json:"private_ip_address"`
	User             string `gorm:"default:ops" json:"user"`
	Path             string `gorm:"default:/home/ops" json:"path"`
	ServerType       string `gorm:"default:app" json:"server_type"`
	Region           string `json:"region"`
	OperatingSystem  string `json:"operating_system"`

	ConnectionStatus          string     `gorm:"default:disconnected" json:"connection_status"`
	ConnectionStatusUpdatedAt *time.Time `json:"connection_status_updated_at"`

	Provisioned bool           `gorm:"default:false" json:"provisioned"`
	PublicKey   string         `json:"public_key"`
	Credentials datatypes.JSON `json:"-"`

	Sites     []Site     `gorm:"foreignKey:ServerID" json:"sites,omitempty"`
	Databases []Database `gorm:"foreignKey:ServerID" json:"databases,omitempty"`
	CronJobs  []CronJob  `gorm:"foreignKey:ServerID" json:"cron_jobs,omitempty"`
	Daemons   []Daemon   `gorm:"foreignKey:ServerID" json:"daemons,omitempty"`
}
