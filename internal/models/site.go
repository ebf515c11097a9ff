package models

import "time"

// Site is a deployed application on a server. Sites are tenant-scoped
// through their server rather than carrying a team id of their own.
type Site struct {
	BaseModel

	ServerID string `gorm:"type:uuid;index;not null" json:"server_id"`

	Name               string     `gorm:"not null" json:"name"`
	Repository         string     `json:"repository"`
	RepositoryProvider string     `json:"repository_provider"`
	RepositoryBranch   string     `gorm:"default:main" json:"repository_branch"`
	DeploymentStatus   string     `gorm:"default:never_deployed" json:"deployment_status"`
	LastDeploymentAt   *time.Time `json:"last_deployment_at"`
	WebDirectory       string     `gorm:"default:public" json:"web_directory"`
	HTTPSEnabled       bool       `gorm:"default:false" json:"https_enabled"`
}
