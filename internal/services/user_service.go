package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/pkg/crypto"
	apperrors "github.com/charlesng35/opsdeck/pkg/errors"
	"github.com/charlesng35/opsdeck/pkg/validator"
)

// RegisterUserInput captures a registration request.
type RegisterUserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UserService handles account registration and lookup. Registration
// provisions the personal team so a new user always lands in a valid
// tenant context.
type UserService struct {
	db    *gorm.DB
	teams *TeamService
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, teams *TeamService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if teams == nil {
		return nil, errors.New("user service: team service is required")
	}
	return &UserService{db: db, teams: teams}, nil
}

// Register creates the account and its personal team.
func (s *UserService) Register(ctx context.Context, input RegisterUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return nil, apperrors.NewValidation(ve.Fields())
		}
		return nil, err
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Password: hashed,
	}

	// The account and its personal team commit together; a failure in
	// either leaves no half-registered user behind.
	var team *models.Team
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewValidation(map[string]string{
					"email": "This email address is already registered.",
				})
			}
			return fmt.Errorf("user service: create user: %w", err)
		}

		provisioned, _, err := s.teams.provisionPersonalTeam(ctx, tx, user)
		if err != nil {
			return err
		}
		team = provisioned
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.teams.announceTeamCreated(ctx, user, team)
	return user, nil
}

// GetByEmail loads a user by email address.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// Authenticate verifies the email/password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}
