package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/opsdeck/internal/models"
)

func TestActivityListenersRecordTeamLifecycle(t *testing.T) {
	fx := openTeamServiceFixture(t)
	RegisterActivityListeners(fx.dispatcher, fx.db)

	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")

	team, err := fx.teams.Create(ctx, owner.ID, CreateTeamInput{Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor"))
	require.NoError(t, fx.teams.RemoveUser(ctx, owner.ID, team.ID, member.ID))

	var entries []models.ActivityLog
	require.NoError(t, fx.db.Where("team_id = ?", team.ID).Find(&entries).Error)

	actions := make([]string, 0, len(entries))
	var joined *models.ActivityLog
	for i, entry := range entries {
		actions = append(actions, entry.Action)
		if entry.Action == "team.member_added" {
			joined = &entries[i]
		}
	}
	require.ElementsMatch(t, []string{"team.created", "team.member_added", "team.member_removed"}, actions)

	require.NotNil(t, joined)
	require.Equal(t, "member@example.com joined the team", joined.Description)
	require.Equal(t, member.ID, joined.UserID)
}
