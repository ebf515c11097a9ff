package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User describes console users together with the teams they own or joined.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	// CurrentTeamID points at the team whose data the user is operating on.
	// Nil means no tenant context has been established yet.
	CurrentTeamID *string `gorm:"type:uuid" json:"current_team_id"`
	CurrentTeam   *Team   `gorm:"foreignKey:CurrentTeamID" json:"current_team,omitempty"`

	OwnedTeams []Team `gorm:"foreignKey:UserID" json:"owned_teams,omitempty"`
	Teams      []Team `gorm:"many2many:memberships;" json:"teams,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
