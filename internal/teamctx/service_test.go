package teamctx

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/cache"
	"github.com/charlesng35/opsdeck/internal/models"
)

func TestCurrentTeamFollowsCurrentTeamID(t *testing.T) {
	db, svc, _ := openTeamCtxFixture(t)
	ctx := context.Background()

	user := createTeamCtxUser(t, db, "user@example.com")
	team := createTeamCtxTeam(t, db, user.ID, "Acme", false)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("current_team_id", team.ID).Error)

	resolved, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, team.ID, resolved.ID)

	id, ok, err := svc.CurrentTeamID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, team.ID, id)
}

func TestCurrentTeamAdoptsPersonalTeamLazily(t *testing.T) {
	db, svc, _ := openTeamCtxFixture(t)
	ctx := context.Background()

	user := createTeamCtxUser(t, db, "user@example.com")
	personal := createTeamCtxTeam(t, db, user.ID, "User's Team", true)

	resolved, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, personal.ID, resolved.ID)

	// Adoption persists so future sessions resolve without the fallback.
	var reloaded models.User
	require.NoError(t, db.Take(&reloaded, "id = ?", user.ID).Error)
	require.NotNil(t, reloaded.CurrentTeamID)
	require.Equal(t, personal.ID, *reloaded.CurrentTeamID)
}

func TestCurrentTeamCachesResolution(t *testing.T) {
	db, svc, store := openTeamCtxFixture(t)
	ctx := context.Background()

	user := createTeamCtxUser(t, db, "user@example.com")
	team := createTeamCtxTeam(t, db, user.ID, "Acme", false)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("current_team_id", team.ID).Error)

	_, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)

	raw, ok, err := store.Get(ctx, "user_team_context_"+user.ID)
	require.NoError(t, err)
	require.True(t, ok)

	var snap snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.False(t, snap.Absent)
	require.Equal(t, team.ID, snap.Team.ID)

	// A stale cache entry wins over the database until invalidated.
	other := createTeamCtxTeam(t, db, user.ID, "Other", false)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("current_team_id", other.ID).Error)

	cached, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, team.ID, cached.ID)

	require.NoError(t, svc.ClearCache(ctx, user.ID))

	fresh, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, other.ID, fresh.ID)
}

func TestCurrentTeamCachesAbsence(t *testing.T) {
	db, svc, store := openTeamCtxFixture(t)
	ctx := context.Background()

	user := createTeamCtxUser(t, db, "teamless@example.com")

	resolved, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, resolved)

	raw, ok, err := store.Get(ctx, "user_team_context_"+user.ID)
	require.NoError(t, err)
	require.True(t, ok)

	var snap snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.True(t, snap.Absent)

	_, ok, err = svc.CurrentTeamID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCurrentTeamDanglingReferenceResolvesAbsent(t *testing.T) {
	db, svc, _ := openTeamCtxFixture(t)
	ctx := context.Background()

	user := createTeamCtxUser(t, db, "user@example.com")
	gone := "11111111-1111-1111-1111-111111111111"
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("current_team_id", gone).Error)

	resolved, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, resolved)
}

func TestCurrentTeamCorruptCacheEntryIsDropped(t *testing.T) {
	db, svc, store := openTeamCtxFixture(t)
	ctx := context.Background()

	user := createTeamCtxUser(t, db, "user@example.com")
	team := createTeamCtxTeam(t, db, user.ID, "Acme", false)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("current_team_id", team.ID).Error)

	require.NoError(t, store.Set(ctx, "user_team_context_"+user.ID, []byte("{not json"), cacheTTL))

	resolved, err := svc.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, team.ID, resolved.ID)
}

func TestCurrentTeamUnauthenticatedAndClearCacheIdempotent(t *testing.T) {
	_, svc, _ := openTeamCtxFixture(t)
	ctx := context.Background()

	resolved, err := svc.CurrentTeam(ctx, "  ")
	require.NoError(t, err)
	require.Nil(t, resolved)

	require.NoError(t, svc.ClearCache(ctx, "nobody"))
	require.NoError(t, svc.ClearCache(ctx, "nobody"))
	require.NoError(t, svc.ClearCache(ctx, ""))
}

func TestCanAccessTeam(t *testing.T) {
	db, svc, _ := openTeamCtxFixture(t)
	ctx := context.Background()

	owner := createTeamCtxUser(t, db, "owner@example.com")
	member := createTeamCtxUser(t, db, "member@example.com")
	stranger := createTeamCtxUser(t, db, "stranger@example.com")
	team := createTeamCtxTeam(t, db, owner.ID, "Acme", false)

	require.NoError(t, db.Create(&models.Membership{
		UserID: member.ID,
		TeamID: team.ID,
		Role:   "editor",
	}).Error)

	require.True(t, svc.CanAccessTeam(ctx, owner.ID, team))
	require.True(t, svc.CanAccessTeam(ctx, member.ID, team))
	require.False(t, svc.CanAccessTeam(ctx, stranger.ID, team))
	require.False(t, svc.CanAccessTeam(ctx, "", team))
}

func createTeamCtxUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{Name: "Test User", Email: email, Password: "irrelevant"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTeamCtxTeam(t *testing.T, db *gorm.DB, ownerID, name string, personal bool) *models.Team {
	t.Helper()

	team := &models.Team{UserID: ownerID, Name: name, PersonalTeam: personal}
	require.NoError(t, db.Create(team).Error)
	return team
}

func openTeamCtxFixture(t *testing.T) (*gorm.DB, *Service, cache.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Membership{},
		&models.CacheEntry{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	resolver, err := authz.NewResolver(db)
	require.NoError(t, err)

	store := cache.NewDatabaseStore(db)
	svc, err := NewService(db, store, resolver)
	require.NoError(t, err)

	return db, svc, store
}
