package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/models"
)

// RoleOwner is the role synthesised for team owners. It is never stored as
// a membership row.
const RoleOwner = "owner"

// PermissionAll is the wildcard granted to team owners.
const PermissionAll = "*"

// Resolver answers ownership, membership, role and permission questions for
// a (user, team) pair. All methods are total: malformed input yields a
// conservative answer (false, empty, absent) rather than an error panic.
type Resolver struct {
	db *gorm.DB
}

// NewResolver constructs a Resolver backed by the provided database.
func NewResolver(db *gorm.DB) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("authz: db is required")
	}
	return &Resolver{db: db}, nil
}

// OwnsTeam reports whether the user is the owning user of the team.
func (r *Resolver) OwnsTeam(ctx context.Context, userID string, team *models.Team) bool {
	if team == nil || strings.TrimSpace(userID) == "" {
		return false
	}
	return team.UserID == userID
}

// BelongsToTeam reports whether the user owns the team or holds a
// membership row for it.
func (r *Resolver) BelongsToTeam(ctx context.Context, userID string, team *models.Team) bool {
	if team == nil || strings.TrimSpace(userID) == "" {
		return false
	}
	if r.OwnsTeam(ctx, userID, team) {
		return true
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND team_id = ?", userID, team.ID).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// TeamRole returns the role the user has on the team. Owners always resolve
// to RoleOwner; the second return value is false when the user is not a
// member at all.
func (r *Resolver) TeamRole(ctx context.Context, userID string, team *models.Team) (string, bool) {
	if team == nil || strings.TrimSpace(userID) == "" {
		return "", false
	}
	if r.OwnsTeam(ctx, userID, team) {
		return RoleOwner, true
	}

	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND team_id = ?", userID, team.ID).
		Take(&membership).Error
	if err != nil {
		return "", false
	}
	return membership.Role, true
}

// HasTeamRole reports whether the user holds exactly the requested role on
// the team. Owners satisfy every role check.
func (r *Resolver) HasTeamRole(ctx context.Context, userID string, team *models.Team, role string) bool {
	if r.OwnsTeam(ctx, userID, team) {
		return true
	}

	current, ok := r.TeamRole(ctx, userID, team)
	return ok && current == role
}

// TeamPermissions returns the permissions the user holds on the team.
// Owners receive the universal wildcard; members receive no permissions in
// the default policy. Finer-grained role-to-permission mapping hooks in here.
func (r *Resolver) TeamPermissions(ctx context.Context, userID string, team *models.Team) []string {
	if r.OwnsTeam(ctx, userID, team) {
		return []string{PermissionAll}
	}
	if !r.BelongsToTeam(ctx, userID, team) {
		return nil
	}
	return []string{}
}

// HasTeamPermission reports whether the user may perform the given action
// on the team. Besides literal and universal-wildcard matches, the
// "*:create" and "*:update" family wildcards cover any permission with the
// corresponding suffix.
func (r *Resolver) HasTeamPermission(ctx context.Context, userID string, team *models.Team, permission string) bool {
	if r.OwnsTeam(ctx, userID, team) {
		return true
	}
	if !r.BelongsToTeam(ctx, userID, team) {
		return false
	}

	permissions := r.TeamPermissions(ctx, userID, team)
	for _, granted := range permissions {
		switch granted {
		case permission, PermissionAll:
			return true
		case "*:create":
			if strings.HasSuffix(permission, ":create") {
				return true
			}
		case "*:update":
			if strings.HasSuffix(permission, ":update") {
				return true
			}
		}
	}
	return false
}

// LoadTeam fetches a team by id, returning nil when it does not exist so
// the caller can feed the result straight into the checks above.
func (r *Resolver) LoadTeam(ctx context.Context, teamID string) (*models.Team, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, nil
	}

	var team models.Team
	err := r.db.WithContext(ctx).Take(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authz: load team: %w", err)
	}
	return &team, nil
}
