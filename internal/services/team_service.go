package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/events"
	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/pkg/crypto"
	apperrors "github.com/charlesng35/opsdeck/pkg/errors"
	"github.com/charlesng35/opsdeck/pkg/logger"
	"github.com/charlesng35/opsdeck/pkg/validator"
)

// PermissionAddTeamMember guards membership mutation on a team.
const PermissionAddTeamMember = "addTeamMember"

const inviteExpiry = 72 * time.Hour
const inviteTokenBytes = 32

var (
	// ErrTeamNotFound indicates the requested team does not exist.
	ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
)

// CreateTeamInput captures new team metadata.
type CreateTeamInput struct {
	Name string
}

// UpdateTeamInput describes mutable team fields.
type UpdateTeamInput struct {
	Name *string
}

// TeamService manages the team lifecycle: personal-team provisioning,
// membership mutation, context switching and cascading purge. Every
// operation that touches current_team_id invalidates the team context cache
// before reporting success.
type TeamService struct {
	db         *gorm.DB
	resolver   *authz.Resolver
	teamCtx    *teamctx.Service
	dispatcher *events.Dispatcher
	log        *zap.Logger
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB, resolver *authz.Resolver, teamCtx *teamctx.Service, dispatcher *events.Dispatcher) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	if resolver == nil {
		return nil, errors.New("team service: resolver is required")
	}
	if teamCtx == nil {
		return nil, errors.New("team service: team context is required")
	}
	if dispatcher == nil {
		return nil, errors.New("team service: dispatcher is required")
	}
	return &TeamService{
		db:         db,
		resolver:   resolver,
		teamCtx:    teamCtx,
		dispatcher: dispatcher,
		log:        logger.WithModule("teams"),
	}, nil
}

// CreatePersonalTeam provisions the team a user lands in after
// registration. Calling it again for the same user returns the existing
// personal team: a user owns exactly one.
func (s *TeamService) CreatePersonalTeam(ctx context.Context, user *models.User) (*models.Team, error) {
	ctx = ensureContext(ctx)

	team, created, err := s.provisionPersonalTeam(ctx, s.db, user)
	if err != nil {
		return nil, err
	}
	if created {
		s.announceTeamCreated(ctx, user, team)
	}
	return team, nil
}

// provisionPersonalTeam creates the personal team and points
// current_team_id at it against the given handle, so registration can run
// the user insert and team provisioning as one transaction. Side effects
// (cache invalidation, the created hook) stay with the caller until commit.
func (s *TeamService) provisionPersonalTeam(ctx context.Context, db *gorm.DB, user *models.User) (*models.Team, bool, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, false, apperrors.NewBadRequest("a persisted user is required")
	}

	var existing models.Team
	err := db.WithContext(ctx).
		Where("user_id = ? AND personal_team = ?", user.ID, true).
		Take(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("team service: lookup personal team: %w", err)
	}

	team := &models.Team{
		UserID:       user.ID,
		Name:         personalTeamName(user.Name),
		PersonalTeam: true,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return fmt.Errorf("team service: create personal team: %w", err)
		}
		return tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("current_team_id", team.ID).Error
	})
	if err != nil {
		return nil, false, err
	}

	user.CurrentTeamID = &team.ID
	return team, true, nil
}

// announceTeamCreated invalidates the owner's context cache and fires the
// created hook.
func (s *TeamService) announceTeamCreated(ctx context.Context, user *models.User, team *models.Team) {
	if err := s.teamCtx.ClearCache(ctx, user.ID); err != nil {
		s.log.Warn("cache invalidation failed after personal team creation",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	s.dispatcher.Dispatch(ctx, events.Event{Name: events.TeamCreated, Team: team, User: user})
}

// Create registers a new non-personal team owned by the given user.
func (s *TeamService) Create(ctx context.Context, ownerID string, input CreateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("team name is required")
	}

	var owner models.User
	if err := s.db.WithContext(ctx).Take(&owner, "id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("team service: load owner: %w", err)
	}

	team := &models.Team{
		UserID: owner.ID,
		Name:   name,
	}

	if err := s.db.WithContext(ctx).Create(team).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("team name already exists")
		}
		return nil, fmt.Errorf("team service: create team: %w", err)
	}

	s.dispatcher.Dispatch(ctx, events.Event{Name: events.TeamCreated, Team: team, User: &owner})
	return team, nil
}

// Update modifies team metadata. Only the owner may rename a team.
func (s *TeamService) Update(ctx context.Context, actingUserID, teamID string, input UpdateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !s.resolver.HasTeamPermission(ctx, actingUserID, team, "team:update") {
		return nil, apperrors.ErrForbidden
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != team.Name {
			updates["name"] = name
		}
	}

	if len(updates) == 0 {
		return team, nil
	}

	if err := s.db.WithContext(ctx).Model(team).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("team service: update team: %w", err)
	}

	return team, nil
}

// Get loads a team for a user that owns or joined it.
func (s *TeamService) Get(ctx context.Context, actingUserID, teamID string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !s.resolver.BelongsToTeam(ctx, actingUserID, team) {
		return nil, apperrors.ErrForbidden
	}
	return team, nil
}

// loadTeam fetches a team row without any authorization gate. Callers must
// check the acting user before exposing the result.
func (s *TeamService) loadTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).Take(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load team: %w", err)
	}
	return &team, nil
}

// List returns every team the user owns or joined, sorted by name.
func (s *TeamService) List(ctx context.Context, userID string) ([]models.Team, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Preload("OwnedTeams").
		Preload("Teams").
		Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load user teams: %w", err)
	}

	seen := make(map[string]struct{}, len(user.OwnedTeams)+len(user.Teams))
	teams := make([]models.Team, 0, len(user.OwnedTeams)+len(user.Teams))
	for _, team := range append(user.OwnedTeams, user.Teams...) {
		if _, dup := seen[team.ID]; dup {
			continue
		}
		seen[team.ID] = struct{}{}
		teams = append(teams, team)
	}

	sortTeamsByName(teams)
	return teams, nil
}

// Members returns the team owner followed by every joined user. The roster
// is only visible to users on the team.
func (s *TeamService) Members(ctx context.Context, actingUserID, teamID string) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var team models.Team
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Users").
		Take(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load members: %w", err)
	}

	if !s.resolver.BelongsToTeam(ctx, actingUserID, &team) {
		return nil, apperrors.ErrForbidden
	}

	members := make([]models.User, 0, len(team.Users)+1)
	if team.Owner != nil {
		members = append(members, *team.Owner)
	}
	members = append(members, team.Users...)
	return members, nil
}

// AddMember attaches a registered user to the team by email. The acting
// user needs the addTeamMember permission; the target must exist and must
// not already be on the team. The adding/added hooks fire synchronously
// around the attach, in that order, whether or not listeners exist.
func (s *TeamService) AddMember(ctx context.Context, actingUserID, teamID, email, role string) error {
	ctx = ensureContext(ctx)

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if !s.resolver.HasTeamPermission(ctx, actingUserID, team, PermissionAddTeamMember) {
		return apperrors.ErrForbidden
	}

	newMember, err := s.validateNewMemberEmail(ctx, team, email)
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Name: events.TeamMemberAdding,
		Team: team,
		User: newMember,
		Role: role,
	})

	if err := s.attach(ctx, s.db, team.ID, newMember.ID, role); err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Name: events.TeamMemberAdded,
		Team: team,
		User: newMember,
		Role: role,
	})

	return nil
}

// InviteMember records a pending invitation for an address that passed the
// same validation as AddMember. Delivery of the invitation email is someone
// else's job; the returned token is only ever exposed to the caller.
func (s *TeamService) InviteMember(ctx context.Context, actingUserID, teamID, email, role string) (*models.TeamInvitation, string, error) {
	ctx = ensureContext(ctx)

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return nil, "", err
	}

	if !s.resolver.HasTeamPermission(ctx, actingUserID, team, PermissionAddTeamMember) {
		return nil, "", apperrors.ErrForbidden
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !validator.ValidateEmail(email) {
		return nil, "", apperrors.NewValidation(map[string]string{
			"email": "A valid email address is required.",
		})
	}

	onTeam, err := s.hasUserWithEmail(ctx, team, email)
	if err != nil {
		return nil, "", err
	}
	if onTeam {
		return nil, "", apperrors.NewValidation(map[string]string{
			"email": "This user already belongs to the team.",
		})
	}

	// Reject duplicates before the inviting hook fires; a rejected request
	// must leave no trace.
	var pending int64
	if err := s.db.WithContext(ctx).
		Model(&models.TeamInvitation{}).
		Where("team_id = ? AND email = ?", team.ID, email).
		Count(&pending).Error; err != nil {
		return nil, "", fmt.Errorf("team service: check pending invitations: %w", err)
	}
	if pending > 0 {
		return nil, "", apperrors.NewValidation(map[string]string{
			"email": "This email address has already been invited.",
		})
	}

	token, err := crypto.GenerateToken(inviteTokenBytes)
	if err != nil {
		return nil, "", fmt.Errorf("team service: generate invite token: %w", err)
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Name:  events.TeamMemberInviting,
		Team:  team,
		Email: email,
		Role:  role,
	})

	invitation := &models.TeamInvitation{
		TeamID:    team.ID,
		Email:     email,
		Role:      role,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: time.Now().Add(inviteExpiry),
	}
	if err := s.db.WithContext(ctx).Create(invitation).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, "", apperrors.NewValidation(map[string]string{
				"email": "This email address has already been invited.",
			})
		}
		return nil, "", fmt.Errorf("team service: create invitation: %w", err)
	}

	return invitation, token, nil
}

// RemoveUser detaches a member from the team, clearing their active context
// first so they never hold a current_team_id for a team they left. Only the
// owner may remove others; any member may remove themself (leave).
func (s *TeamService) RemoveUser(ctx context.Context, actingUserID, teamID, userID string) error {
	ctx = ensureContext(ctx)

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if actingUserID != userID && !s.resolver.OwnsTeam(ctx, actingUserID, team) {
		return apperrors.ErrForbidden
	}

	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("team service: load user: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.CurrentTeamID != nil && *user.CurrentTeamID == team.ID {
			if err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("current_team_id", nil).Error; err != nil {
				return fmt.Errorf("team service: clear current team: %w", err)
			}
		}

		// Detaching a non-member is a no-op.
		return tx.Where("team_id = ? AND user_id = ?", team.ID, user.ID).
			Delete(&models.Membership{}).Error
	})
	if err != nil {
		return err
	}

	if err := s.teamCtx.ClearCache(ctx, user.ID); err != nil {
		s.log.Warn("cache invalidation failed after member removal",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Name: events.TeamMemberRemoved,
		Team: team,
		User: &user,
	})

	return nil
}

// SwitchTeam moves the user's active context to the target team. Users can
// only switch to teams they own or joined; a denied switch changes nothing.
// The context cache is invalidated before the call returns so the very next
// scoped query sees the new team.
func (s *TeamService) SwitchTeam(ctx context.Context, userID, teamID string) error {
	ctx = ensureContext(ctx)

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if !s.resolver.BelongsToTeam(ctx, userID, team) {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("current_team_id", team.ID).Error; err != nil {
		return fmt.Errorf("team service: switch team: %w", err)
	}

	if err := s.teamCtx.ClearCache(ctx, userID); err != nil {
		return fmt.Errorf("team service: invalidate context cache: %w", err)
	}

	return nil
}

// Purge deletes a team and everything it owns in one transaction: active
// contexts pointing at the team are cleared, memberships detached, tenant
// rows removed, then the team row itself. A concurrent reader either sees
// the team whole or gone, never half-dismantled. Only the owner may purge.
func (s *TeamService) Purge(ctx context.Context, actingUserID, teamID string) error {
	ctx = ensureContext(ctx)

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if !s.resolver.HasTeamPermission(ctx, actingUserID, team, "team:delete") {
		return apperrors.ErrForbidden
	}

	var affected []string

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.Where("current_team_id = ?", team.ID).Find(&users).Error; err != nil {
			return fmt.Errorf("team service: find affected users: %w", err)
		}
		for _, user := range users {
			affected = append(affected, user.ID)
		}

		if err := tx.Model(&models.User{}).
			Where("current_team_id = ?", team.ID).
			Update("current_team_id", nil).Error; err != nil {
			return fmt.Errorf("team service: clear current teams: %w", err)
		}

		if err := tx.Where("team_id = ?", team.ID).Delete(&models.Membership{}).Error; err != nil {
			return fmt.Errorf("team service: detach memberships: %w", err)
		}

		// Sites hang off servers rather than carrying a team id.
		serverIDs := tx.Model(&models.Server{}).Select("id").Where("team_id = ?", team.ID)
		if err := tx.Where("server_id IN (?)", serverIDs).Delete(&models.Site{}).Error; err != nil {
			return fmt.Errorf("team service: purge sites: %w", err)
		}

		for _, owned := range []any{
			&models.Database{},
			&models.CronJob{},
			&models.Daemon{},
			&models.Server{},
			&models.ServerProvider{},
			&models.SshKey{},
			&models.SourceControl{},
			&models.ActivityLog{},
			&models.TeamInvitation{},
		} {
			if err := tx.Where("team_id = ?", team.ID).Delete(owned).Error; err != nil {
				return fmt.Errorf("team service: purge tenant rows: %w", err)
			}
		}

		if err := tx.Delete(&models.Team{}, "id = ?", team.ID).Error; err != nil {
			return fmt.Errorf("team service: delete team: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, userID := range affected {
		if err := s.teamCtx.ClearCache(ctx, userID); err != nil {
			s.log.Warn("cache invalidation failed after purge",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.dispatcher.Dispatch(ctx, events.Event{Name: events.TeamDeleted, Team: team})
	return nil
}

// attach creates the membership row. Attaching an existing member keeps the
// original row untouched.
func (s *TeamService) attach(ctx context.Context, db *gorm.DB, teamID, userID, role string) error {
	membership := models.Membership{
		TeamID: teamID,
		UserID: userID,
		Role:   role,
	}
	err := db.WithContext(ctx).Create(&membership).Error
	if err != nil && isUniqueConstraintError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("team service: attach member: %w", err)
	}
	return nil
}

// validateNewMemberEmail resolves the email to a registered user that is
// not yet on the team, returning field-scoped validation failures otherwise.
func (s *TeamService) validateNewMemberEmail(ctx context.Context, team *models.Team, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validator.ValidateEmail(email) {
		return nil, apperrors.NewValidation(map[string]string{
			"email": "A valid email address is required.",
		})
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewValidation(map[string]string{
			"email": "We were unable to find a registered user with this email address.",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("team service: lookup user by email: %w", err)
	}

	onTeam, err := s.hasUserWithEmail(ctx, team, email)
	if err != nil {
		return nil, err
	}
	if onTeam {
		return nil, apperrors.NewValidation(map[string]string{
			"email": "This user already belongs to the team.",
		})
	}

	return &user, nil
}

// hasUserWithEmail checks the owner and every membership for the address.
func (s *TeamService) hasUserWithEmail(ctx context.Context, team *models.Team, email string) (bool, error) {
	var owner models.User
	err := s.db.WithContext(ctx).Take(&owner, "id = ?", team.UserID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("team service: load owner: %w", err)
	}
	if err == nil && strings.EqualFold(owner.Email, email) {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.team_id = ? AND LOWER(users.email) = ?", team.ID, email).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("team service: check membership email: %w", err)
	}
	return count > 0, nil
}

func personalTeamName(displayName string) string {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "Personal Team"
	}
	return displayName + "'s Team"
}
