package models

import "gorm.io/datatypes"

// ServerProvider stores a team's connection to a hosting provider such as
// DigitalOcean, AWS or Hetzner. Credentials are opaque to this service.
type ServerProvider struct {
	BaseModel

	TeamID string `gorm:"type:uuid;index;not null" json:"team_id"`

	Name         string         `gorm:"not null" json:"name"`
	ProviderType string         `gorm:"not null" json:"provider_type"`
	Credentials  datatypes.JSON `json:"-"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`

	Servers []Server `gorm:"foreignKey:ServerProviderID" json:"servers,omitempty"`
}
