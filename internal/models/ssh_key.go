package models

// SshKey is a public key a team distributes to its servers.
type SshKey struct {
	BaseModel

	TeamID string `gorm:"type:uuid;index;not null" json:"team_id"`
	UserID string `gorm:"type:uuid;index" json:"user_id"`

	Name      string `gorm:"not null" json:"name"`
	PublicKey string `gorm:"not null" json:"public_key"`
}
