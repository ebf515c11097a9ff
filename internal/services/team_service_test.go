package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/cache"
	"github.com/charlesng35/opsdeck/internal/events"
	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/pkg/crypto"
	apperrors "github.com/charlesng35/opsdeck/pkg/errors"
)

func TestCreatePersonalTeamIsIdempotent(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	recorder := fx.record(events.TeamCreated)

	user := createServiceUser(t, fx.db, "Taylor", "taylor@example.com")

	first, err := fx.teams.CreatePersonalTeam(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "Taylor's Team", first.Name)
	require.True(t, first.PersonalTeam)

	var reloaded models.User
	require.NoError(t, fx.db.Take(&reloaded, "id = ?", user.ID).Error)
	require.NotNil(t, reloaded.CurrentTeamID)
	require.Equal(t, first.ID, *reloaded.CurrentTeamID)

	second, err := fx.teams.CreatePersonalTeam(ctx, user)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	require.Len(t, *recorder, 1)
}

func TestAddMemberFiresHooksAroundAttach(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	var order []string
	fx.dispatcher.Subscribe(events.TeamMemberAdding, func(ctx context.Context, e events.Event) {
		order = append(order, e.Name)
		// The membership row must not exist yet when the pre-hook runs.
		var count int64
		require.NoError(t, fx.db.Model(&models.Membership{}).
			Where("team_id = ? AND user_id = ?", team.ID, member.ID).
			Count(&count).Error)
		require.Zero(t, count)
	})
	fx.dispatcher.Subscribe(events.TeamMemberAdded, func(ctx context.Context, e events.Event) {
		order = append(order, e.Name)
	})

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, "Member@Example.com", "editor"))
	require.Equal(t, []string{events.TeamMemberAdding, events.TeamMemberAdded}, order)

	var membership models.Membership
	require.NoError(t, fx.db.
		Where("team_id = ? AND user_id = ?", team.ID, member.ID).
		Take(&membership).Error)
	require.Equal(t, "editor", membership.Role)
}

func TestAddMemberRejectsUnknownEmail(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	adding := fx.record(events.TeamMemberAdding)
	added := fx.record(events.TeamMemberAdded)

	err := fx.teams.AddMember(ctx, owner.ID, team.ID, "ghost@example.com", "editor")
	requireValidationField(t, err, "email",
		"We were unable to find a registered user with this email address.")

	// A rejected request fires no hooks and attaches nobody.
	require.Empty(t, *adding)
	require.Empty(t, *added)

	var count int64
	require.NoError(t, fx.db.Model(&models.Membership{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAddMemberRejectsExistingMembers(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor"))

	err := fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor")
	requireValidationField(t, err, "email", "This user already belongs to the team.")

	// The owner counts as belonging to the team.
	err = fx.teams.AddMember(ctx, owner.ID, team.ID, owner.Email, "editor")
	requireValidationField(t, err, "email", "This user already belongs to the team.")

	err = fx.teams.AddMember(ctx, owner.ID, team.ID, "not-an-email", "editor")
	requireValidationField(t, err, "email", "A valid email address is required.")
}

func TestAddMemberRequiresPermission(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")
	outsider := createServiceUser(t, fx.db, "Outsider", "outsider@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor"))

	// Plain members hold no permissions in the default policy.
	err := fx.teams.AddMember(ctx, member.ID, team.ID, outsider.Email, "editor")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	err = fx.teams.AddMember(ctx, outsider.ID, team.ID, outsider.Email, "editor")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	err = fx.teams.AddMember(ctx, owner.ID, "missing-team", member.Email, "editor")
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestSwitchTeamRoundTrip(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	user := createServiceUser(t, fx.db, "User", "user@example.com")

	personal, err := fx.teams.CreatePersonalTeam(ctx, user)
	require.NoError(t, err)

	shared := createServiceTeam(t, fx.db, owner.ID, "Shared")
	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, shared.ID, user.Email, "editor"))

	require.NoError(t, fx.teams.SwitchTeam(ctx, user.ID, shared.ID))

	current, err := fx.teamCtx.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, shared.ID, current.ID)

	// Switching to a team the user has no ties to is denied and changes nothing.
	foreign := createServiceTeam(t, fx.db, owner.ID, "Foreign")
	err = fx.teams.SwitchTeam(ctx, user.ID, foreign.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	current, err = fx.teamCtx.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, shared.ID, current.ID)

	require.NoError(t, fx.teams.SwitchTeam(ctx, user.ID, personal.ID))
	current, err = fx.teamCtx.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, personal.ID, current.ID)
}

func TestRemoveUserClearsActiveContext(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	removed := fx.record(events.TeamMemberRemoved)

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor"))
	require.NoError(t, fx.teams.SwitchTeam(ctx, member.ID, team.ID))

	require.NoError(t, fx.teams.RemoveUser(ctx, owner.ID, team.ID, member.ID))

	var reloaded models.User
	require.NoError(t, fx.db.Take(&reloaded, "id = ?", member.ID).Error)
	require.Nil(t, reloaded.CurrentTeamID)

	var count int64
	require.NoError(t, fx.db.Model(&models.Membership{}).
		Where("team_id = ? AND user_id = ?", team.ID, member.ID).
		Count(&count).Error)
	require.Zero(t, count)

	require.Len(t, *removed, 1)

	// Detaching a non-member is a no-op.
	require.NoError(t, fx.teams.RemoveUser(ctx, owner.ID, team.ID, member.ID))
}

func TestPurgeRemovesTeamAndEverythingItOwns(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")
	bystander := createServiceUser(t, fx.db, "Bystander", "bystander@example.com")

	team := createServiceTeam(t, fx.db, owner.ID, "Doomed")
	other := createServiceTeam(t, fx.db, bystander.ID, "Survivor")

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor"))
	require.NoError(t, fx.teams.SwitchTeam(ctx, member.ID, team.ID))
	require.NoError(t, fx.teams.SwitchTeam(ctx, owner.ID, team.ID))

	server := &models.Server{TeamID: team.ID, Name: "web-1", IPAddress: "192.0.2.1"}
	require.NoError(t, fx.db.Create(server).Error)
	require.NoError(t, fx.db.Create(&models.Site{ServerID: server.ID, Name: "example.com"}).Error)
	require.NoError(t, fx.db.Create(&models.Database{TeamID: team.ID, ServerID: server.ID, Name: "app"}).Error)
	require.NoError(t, fx.db.Create(&models.CronJob{TeamID: team.ID, ServerID: server.ID, Command: "true", Cron: "* * * * *"}).Error)
	require.NoError(t, fx.db.Create(&models.Daemon{TeamID: team.ID, ServerID: server.ID, Command: "sleep infinity"}).Error)
	require.NoError(t, fx.db.Create(&models.ServerProvider{TeamID: team.ID, Name: "do", ProviderType: "digitalocean"}).Error)
	require.NoError(t, fx.db.Create(&models.SshKey{TeamID: team.ID, Name: "deploy", PublicKey: "ssh-ed25519 AAAA"}).Error)
	require.NoError(t, fx.db.Create(&models.SourceControl{TeamID: team.ID, Provider: "github", Name: "org"}).Error)
	require.NoError(t, fx.db.Create(&models.TeamInvitation{TeamID: team.ID, Email: "new@example.com", TokenHash: "hash", ExpiresAt: time.Now().Add(time.Hour)}).Error)

	otherServer := &models.Server{TeamID: other.ID, Name: "web-2", IPAddress: "192.0.2.2"}
	require.NoError(t, fx.db.Create(otherServer).Error)
	require.NoError(t, fx.db.Create(&models.Site{ServerID: otherServer.ID, Name: "other.com"}).Error)

	deleted := fx.record(events.TeamDeleted)

	require.NoError(t, fx.teams.Purge(ctx, owner.ID, team.ID))

	for _, owned := range []struct {
		name  string
		model any
	}{
		{"servers", &models.Server{}},
		{"databases", &models.Database{}},
		{"cron jobs", &models.CronJob{}},
		{"daemons", &models.Daemon{}},
		{"providers", &models.ServerProvider{}},
		{"ssh keys", &models.SshKey{}},
		{"source controls", &models.SourceControl{}},
		{"invitations", &models.TeamInvitation{}},
		{"memberships", &models.Membership{}},
	} {
		var count int64
		require.NoError(t, fx.db.Model(owned.model).Where("team_id = ?", team.ID).Count(&count).Error)
		require.Zerof(t, count, "%s should be purged", owned.name)
	}

	var siteCount int64
	require.NoError(t, fx.db.Model(&models.Site{}).Where("server_id = ?", server.ID).Count(&siteCount).Error)
	require.Zero(t, siteCount)

	// Users whose active context pointed at the team are left without one.
	for _, id := range []string{owner.ID, member.ID} {
		var u models.User
		require.NoError(t, fx.db.Take(&u, "id = ?", id).Error)
		require.Nil(t, u.CurrentTeamID)

		current, err := fx.teamCtx.CurrentTeam(ctx, id)
		require.NoError(t, err)
		require.Nil(t, current)
	}

	var teamCount int64
	require.NoError(t, fx.db.Model(&models.Team{}).Where("id = ?", team.ID).Count(&teamCount).Error)
	require.Zero(t, teamCount)

	// The other team's world is untouched.
	var survivors int64
	require.NoError(t, fx.db.Model(&models.Server{}).Where("team_id = ?", other.ID).Count(&survivors).Error)
	require.EqualValues(t, 1, survivors)
	require.NoError(t, fx.db.Model(&models.Site{}).Where("server_id = ?", otherServer.ID).Count(&survivors).Error)
	require.EqualValues(t, 1, survivors)

	require.Len(t, *deleted, 1)

	require.ErrorIs(t, fx.teams.Purge(ctx, owner.ID, team.ID), ErrTeamNotFound)
}

func TestInviteMemberStoresHashedToken(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	inviting := fx.record(events.TeamMemberInviting)

	invitation, token, err := fx.teams.InviteMember(ctx, owner.ID, team.ID, "New@Example.com", "editor")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "new@example.com", invitation.Email)
	require.Equal(t, crypto.HashToken(token), invitation.TokenHash)
	require.WithinDuration(t, time.Now().Add(inviteExpiry), invitation.ExpiresAt, time.Minute)
	require.Len(t, *inviting, 1)

	// Existing members cannot be invited again.
	_, _, err = fx.teams.InviteMember(ctx, owner.ID, team.ID, owner.Email, "editor")
	requireValidationField(t, err, "email", "This user already belongs to the team.")
}

func TestInviteMemberRejectsPendingDuplicates(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	inviting := fx.record(events.TeamMemberInviting)

	_, _, err := fx.teams.InviteMember(ctx, owner.ID, team.ID, "new@example.com", "editor")
	require.NoError(t, err)

	// A second invitation for the same address is rejected before the
	// inviting hook fires and stores nothing.
	_, _, err = fx.teams.InviteMember(ctx, owner.ID, team.ID, "New@Example.com", "editor")
	requireValidationField(t, err, "email", "This email address has already been invited.")
	require.Len(t, *inviting, 1)

	var count int64
	require.NoError(t, fx.db.Model(&models.TeamInvitation{}).
		Where("team_id = ? AND email = ?", team.ID, "new@example.com").
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestTeamMutationsRequireOwnership(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")
	stranger := createServiceUser(t, fx.db, "Stranger", "stranger@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor"))

	newName := "Hijacked"
	for _, userID := range []string{member.ID, stranger.ID} {
		_, err := fx.teams.Update(ctx, userID, team.ID, UpdateTeamInput{Name: &newName})
		require.ErrorIs(t, err, apperrors.ErrForbidden)

		require.ErrorIs(t, fx.teams.Purge(ctx, userID, team.ID), apperrors.ErrForbidden)
	}

	// A denied rename or purge changes nothing.
	var reloaded models.Team
	require.NoError(t, fx.db.Take(&reloaded, "id = ?", team.ID).Error)
	require.Equal(t, "Acme", reloaded.Name)

	// The roster and the team itself stay hidden from outsiders.
	_, err := fx.teams.Get(ctx, stranger.ID, team.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = fx.teams.Members(ctx, stranger.ID, team.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// Members read the team and roster like the owner does.
	_, err = fx.teams.Get(ctx, member.ID, team.ID)
	require.NoError(t, err)
	_, err = fx.teams.Members(ctx, member.ID, team.ID)
	require.NoError(t, err)

	renamed, err := fx.teams.Update(ctx, owner.ID, team.ID, UpdateTeamInput{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "Hijacked", renamed.Name)
}

func TestRemoveUserAllowsOwnerOrSelf(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	first := createServiceUser(t, fx.db, "First", "first@example.com")
	second := createServiceUser(t, fx.db, "Second", "second@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, first.Email, "editor"))
	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, second.Email, "editor"))

	// A member cannot remove anyone but themself.
	err := fx.teams.RemoveUser(ctx, first.ID, team.ID, second.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	var count int64
	require.NoError(t, fx.db.Model(&models.Membership{}).
		Where("team_id = ?", team.ID).Count(&count).Error)
	require.EqualValues(t, 2, count)

	// Leaving the team is always allowed.
	require.NoError(t, fx.teams.RemoveUser(ctx, first.ID, team.ID, first.ID))

	// The owner removes anyone.
	require.NoError(t, fx.teams.RemoveUser(ctx, owner.ID, team.ID, second.ID))

	require.NoError(t, fx.db.Model(&models.Membership{}).
		Where("team_id = ?", team.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestListReturnsOwnedAndJoinedTeamsSorted(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	user := createServiceUser(t, fx.db, "User", "user@example.com")

	createServiceTeam(t, fx.db, user.ID, "zulu")
	shared := createServiceTeam(t, fx.db, owner.ID, "Alpha")
	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, shared.ID, user.Email, "editor"))

	teams, err := fx.teams.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	require.Equal(t, "Alpha", teams[0].Name)
	require.Equal(t, "zulu", teams[1].Name)
}

func TestMembersListsOwnerFirst(t *testing.T) {
	fx := openTeamServiceFixture(t)
	ctx := context.Background()

	owner := createServiceUser(t, fx.db, "Owner", "owner@example.com")
	member := createServiceUser(t, fx.db, "Member", "member@example.com")
	team := createServiceTeam(t, fx.db, owner.ID, "Acme")

	require.NoError(t, fx.teams.AddMember(ctx, owner.ID, team.ID, member.Email, "editor"))

	members, err := fx.teams.Members(ctx, owner.ID, team.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, owner.ID, members[0].ID)
	require.Equal(t, member.ID, members[1].ID)
}

type teamServiceFixture struct {
	db         *gorm.DB
	teams      *TeamService
	teamCtx    *teamctx.Service
	dispatcher *events.Dispatcher
}

// record subscribes a collector for the named event and returns the slice it
// appends to.
func (fx *teamServiceFixture) record(name string) *[]events.Event {
	var seen []events.Event
	fx.dispatcher.Subscribe(name, func(ctx context.Context, e events.Event) {
		seen = append(seen, e)
	})
	return &seen
}

func requireValidationField(t *testing.T, err error, field, message string) {
	t.Helper()

	require.Error(t, err)
	require.True(t, apperrors.IsValidation(err), "expected a validation error, got %v", err)

	appErr := apperrors.FromError(err)
	require.Equal(t, message, appErr.Fields[field])
}

func createServiceUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()

	user := &models.User{Name: name, Email: email, Password: "irrelevant"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createServiceTeam(t *testing.T, db *gorm.DB, ownerID, name string) *models.Team {
	t.Helper()

	team := &models.Team{UserID: ownerID, Name: name}
	require.NoError(t, db.Create(team).Error)
	return team
}

func openTeamServiceFixture(t *testing.T) *teamServiceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Membership{},
		&models.TeamInvitation{},
		&models.ServerProvider{},
		&models.Server{},
		&models.Site{},
		&models.Database{},
		&models.CronJob{},
		&models.Daemon{},
		&models.SshKey{},
		&models.SourceControl{},
		&models.ActivityLog{},
		&models.CacheEntry{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	resolver, err := authz.NewResolver(db)
	require.NoError(t, err)

	teamCtx, err := teamctx.NewService(db, cache.NewDatabaseStore(db), resolver)
	require.NoError(t, err)

	dispatcher := events.NewDispatcher()

	teams, err := NewTeamService(db, resolver, teamCtx, dispatcher)
	require.NoError(t, err)

	return &teamServiceFixture{
		db:         db,
		teams:      teams,
		teamCtx:    teamCtx,
		dispatcher: dispatcher,
	}
}
