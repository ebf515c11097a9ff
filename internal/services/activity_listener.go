package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/events"
	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/pkg/logger"
)

// RegisterActivityListeners wires the default audit trail: team lifecycle
// events become activity-log rows inside the affected team.
func RegisterActivityListeners(dispatcher *events.Dispatcher, db *gorm.DB) {
	if dispatcher == nil || db == nil {
		return
	}

	log := logger.WithModule("activity")

	record := func(action string) events.Listener {
		return func(ctx context.Context, event events.Event) {
			if event.Team == nil {
				return
			}

			entry := models.ActivityLog{
				TeamID:      event.Team.ID,
				Action:      action,
				Description: describe(event),
			}
			if event.User != nil {
				entry.UserID = event.User.ID
			}

			if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
				log.Warn("activity log write failed",
					zap.String("action", action), zap.Error(err))
			}
		}
	}

	dispatcher.Subscribe(events.TeamCreated, record("team.created"))
	dispatcher.Subscribe(events.TeamMemberAdded, record("team.member_added"))
	dispatcher.Subscribe(events.TeamMemberRemoved, record("team.member_removed"))
	dispatcher.Subscribe(events.TeamMemberInviting, record("team.member_invited"))
}

func describe(event events.Event) string {
	switch event.Name {
	case events.TeamCreated:
		return "Team " + event.Team.Name + " was created"
	case events.TeamMemberAdded:
		if event.User != nil {
			return event.User.Email + " joined the team"
		}
		return "A member joined the team"
	case events.TeamMemberRemoved:
		if event.User != nil {
			return event.User.Email + " was removed from the team"
		}
		return "A member was removed from the team"
	case events.TeamMemberInviting:
		return event.Email + " was invited to the team"
	default:
		return event.Name
	}
}
