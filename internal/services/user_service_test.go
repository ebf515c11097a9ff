package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/pkg/crypto"
	apperrors "github.com/charlesng35/opsdeck/pkg/errors"
)

func TestRegisterProvisionsPersonalTeam(t *testing.T) {
	fx := openTeamServiceFixture(t)
	users, err := NewUserService(fx.db, fx.teams)
	require.NoError(t, err)

	ctx := context.Background()

	user, err := users.Register(ctx, RegisterUserInput{
		Name:     "Taylor",
		Email:    "Taylor@Example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.Equal(t, "taylor@example.com", user.Email)
	require.True(t, crypto.VerifyPassword(user.Password, "correct horse battery"))

	// Registration lands the user in a valid tenant context immediately.
	current, err := fx.teamCtx.CurrentTeam(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.True(t, current.PersonalTeam)
	require.Equal(t, "Taylor's Team", current.Name)
}

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	fx := openTeamServiceFixture(t)
	users, err := NewUserService(fx.db, fx.teams)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = users.Register(ctx, RegisterUserInput{Name: "", Email: "bad", Password: "short"})
	require.True(t, apperrors.IsValidation(err))

	_, err = users.Register(ctx, RegisterUserInput{
		Name:     "Taylor",
		Email:    "taylor@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	_, err = users.Register(ctx, RegisterUserInput{
		Name:     "Other Taylor",
		Email:    "taylor@example.com",
		Password: "correct horse battery",
	})
	requireValidationField(t, err, "email", "This email address is already registered.")
}

func TestRegisterRollsBackUserWhenTeamProvisioningFails(t *testing.T) {
	fx := openTeamServiceFixture(t)
	users, err := NewUserService(fx.db, fx.teams)
	require.NoError(t, err)

	ctx := context.Background()

	// Make team provisioning impossible so the surrounding transaction
	// has to unwind the user insert.
	require.NoError(t, fx.db.Migrator().DropTable(&models.Team{}))

	_, err = users.Register(ctx, RegisterUserInput{
		Name:     "Taylor",
		Email:    "taylor@example.com",
		Password: "correct horse battery",
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, fx.db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAuthenticate(t *testing.T) {
	fx := openTeamServiceFixture(t)
	users, err := NewUserService(fx.db, fx.teams)
	require.NoError(t, err)

	ctx := context.Background()

	registered, err := users.Register(ctx, RegisterUserInput{
		Name:     "Taylor",
		Email:    "taylor@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	user, err := users.Authenticate(ctx, "Taylor@Example.com", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)

	_, err = users.Authenticate(ctx, "taylor@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = users.Authenticate(ctx, "nobody@example.com", "whatever")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestGetByEmail(t *testing.T) {
	fx := openTeamServiceFixture(t)
	users, err := NewUserService(fx.db, fx.teams)
	require.NoError(t, err)

	ctx := context.Background()

	createServiceUser(t, fx.db, "Taylor", "taylor@example.com")

	user, err := users.GetByEmail(ctx, "  TAYLOR@example.com ")
	require.NoError(t, err)
	require.IsType(t, &models.User{}, user)
	require.Equal(t, "taylor@example.com", user.Email)

	_, err = users.GetByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}
