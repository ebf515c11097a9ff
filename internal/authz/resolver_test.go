package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/models"
)

func TestResolverOwnerHoldsEveryPermission(t *testing.T) {
	db := openResolverTestDB(t)
	resolver, err := NewResolver(db)
	require.NoError(t, err)

	owner := createResolverUser(t, db, "owner@example.com")
	team := createResolverTeam(t, db, owner.ID, "Acme")

	ctx := context.Background()

	require.True(t, resolver.OwnsTeam(ctx, owner.ID, team))
	require.True(t, resolver.BelongsToTeam(ctx, owner.ID, team))

	role, ok := resolver.TeamRole(ctx, owner.ID, team)
	require.True(t, ok)
	require.Equal(t, RoleOwner, role)

	require.Equal(t, []string{PermissionAll}, resolver.TeamPermissions(ctx, owner.ID, team))
	require.True(t, resolver.HasTeamPermission(ctx, owner.ID, team, "addTeamMember"))
	require.True(t, resolver.HasTeamPermission(ctx, owner.ID, team, "servers:delete"))
	require.True(t, resolver.HasTeamRole(ctx, owner.ID, team, "editor"))
}

func TestResolverMemberHasRoleButNoPermissions(t *testing.T) {
	db := openResolverTestDB(t)
	resolver, err := NewResolver(db)
	require.NoError(t, err)

	owner := createResolverUser(t, db, "owner@example.com")
	member := createResolverUser(t, db, "member@example.com")
	team := createResolverTeam(t, db, owner.ID, "Acme")

	require.NoError(t, db.Create(&models.Membership{
		UserID: member.ID,
		TeamID: team.ID,
		Role:   "editor",
	}).Error)

	ctx := context.Background()

	require.False(t, resolver.OwnsTeam(ctx, member.ID, team))
	require.True(t, resolver.BelongsToTeam(ctx, member.ID, team))

	role, ok := resolver.TeamRole(ctx, member.ID, team)
	require.True(t, ok)
	require.Equal(t, "editor", role)

	require.True(t, resolver.HasTeamRole(ctx, member.ID, team, "editor"))
	require.False(t, resolver.HasTeamRole(ctx, member.ID, team, "admin"))

	require.Empty(t, resolver.TeamPermissions(ctx, member.ID, team))
	require.False(t, resolver.HasTeamPermission(ctx, member.ID, team, "addTeamMember"))
	require.False(t, resolver.HasTeamPermission(ctx, member.ID, team, "servers:create"))
}

func TestResolverNonMemberIsDeniedEverything(t *testing.T) {
	db := openResolverTestDB(t)
	resolver, err := NewResolver(db)
	require.NoError(t, err)

	owner := createResolverUser(t, db, "owner@example.com")
	stranger := createResolverUser(t, db, "stranger@example.com")
	team := createResolverTeam(t, db, owner.ID, "Acme")

	ctx := context.Background()

	require.False(t, resolver.BelongsToTeam(ctx, stranger.ID, team))

	_, ok := resolver.TeamRole(ctx, stranger.ID, team)
	require.False(t, ok)

	require.Nil(t, resolver.TeamPermissions(ctx, stranger.ID, team))
	require.False(t, resolver.HasTeamPermission(ctx, stranger.ID, team, "addTeamMember"))
}

func TestResolverNilTeamAndBlankUser(t *testing.T) {
	db := openResolverTestDB(t)
	resolver, err := NewResolver(db)
	require.NoError(t, err)

	owner := createResolverUser(t, db, "owner@example.com")
	team := createResolverTeam(t, db, owner.ID, "Acme")

	ctx := context.Background()

	require.False(t, resolver.OwnsTeam(ctx, owner.ID, nil))
	require.False(t, resolver.BelongsToTeam(ctx, "", team))
	require.False(t, resolver.HasTeamPermission(ctx, "  ", team, "addTeamMember"))

	_, ok := resolver.TeamRole(ctx, owner.ID, nil)
	require.False(t, ok)
}

func TestResolverLoadTeam(t *testing.T) {
	db := openResolverTestDB(t)
	resolver, err := NewResolver(db)
	require.NoError(t, err)

	owner := createResolverUser(t, db, "owner@example.com")
	team := createResolverTeam(t, db, owner.ID, "Acme")

	ctx := context.Background()

	loaded, err := resolver.LoadTeam(ctx, team.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, team.Name, loaded.Name)

	missing, err := resolver.LoadTeam(ctx, "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, missing)

	blank, err := resolver.LoadTeam(ctx, "   ")
	require.NoError(t, err)
	require.Nil(t, blank)
}

func createResolverUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{Name: "Test User", Email: email, Password: "irrelevant"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createResolverTeam(t *testing.T, db *gorm.DB, ownerID, name string) *models.Team {
	t.Helper()

	team := &models.Team{UserID: ownerID, Name: name}
	require.NoError(t, db.Create(team).Error)
	return team
}

func openResolverTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Membership{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
