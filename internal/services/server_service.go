package services

import (
	"context"
	"errors"
	"strings"

	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/internal/tenant"
	apperrors "github.com/charlesng35/opsdeck/pkg/errors"
)

// ServerRepository is the tenant-scoped data access for servers.
type ServerRepository = tenant.Repository[models.Server, *models.Server]

// CreateServerInput captures new server metadata.
type CreateServerInput struct {
	Name             string `json:"name" validate:"required"`
	IPAddress        string `json:"ip_address" validate:"required,ip"`
	PrivateIPAddress string `json:"private_ip_address" validate:"omitempty,ip"`
	ServerProviderID string `json:"server_provider_id"`
	ServerType       string `json:"server_type"`
	Region           string `json:"region"`
}

// ServerService exposes team-scoped server management. All reads and
// writes flow through the tenant repository; write actions additionally
// require the matching team permission.
type ServerService struct {
	repo     *ServerRepository
	resolver *authz.Resolver
	teamCtx  *teamctx.Service
}

// NewServerService constructs a ServerService.
func NewServerService(repo *ServerRepository, resolver *authz.Resolver, teamCtx *teamctx.Service) (*ServerService, error) {
	if repo == nil {
		return nil, errors.New("server service: repository is required")
	}
	if resolver == nil {
		return nil, errors.New("server service: resolver is required")
	}
	if teamCtx == nil {
		return nil, errors.New("server service: team context is required")
	}
	return &ServerService{repo: repo, resolver: resolver, teamCtx: teamCtx}, nil
}

// List returns the current team's servers. With no team context this is
// empty, never an error.
func (s *ServerService) List(ctx context.Context, userID string) ([]models.Server, error) {
	return s.repo.List(ensureContext(ctx), userID)
}

// Get fetches one of the current team's servers.
func (s *ServerService) Get(ctx context.Context, userID, id string) (*models.Server, error) {
	return s.repo.Get(ensureContext(ctx), userID, id)
}

// Create registers a server under the current team.
func (s *ServerService) Create(ctx context.Context, userID string, input CreateServerInput) (*models.Server, error) {
	ctx = ensureContext(ctx)

	if err := s.authorize(ctx, userID, "servers:create"); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.IPAddress) == "" {
		return nil, apperrors.NewBadRequest("server name and ip address are required")
	}

	server := &models.Server{
		Name:             strings.TrimSpace(input.Name),
		IPAddress:        strings.TrimSpace(input.IPAddress),
		PrivateIPAddress: strings.TrimSpace(input.PrivateIPAddress),
		ServerType:       input.ServerType,
		Region:           input.Region,
	}
	if id := strings.TrimSpace(input.ServerProviderID); id != "" {
		server.ServerProviderID = &id
	}

	if err := s.repo.Create(ctx, userID, server); err != nil {
		return nil, err
	}
	return server, nil
}

// Update applies a partial update to one of the current team's servers.
func (s *ServerService) Update(ctx context.Context, userID, id string, values map[string]any) error {
	ctx = ensureContext(ctx)

	if err := s.authorize(ctx, userID, "servers:update"); err != nil {
		return err
	}
	return s.repo.Updates(ctx, userID, id, values)
}

// Delete removes one of the current team's servers and its sites.
func (s *ServerService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	if err := s.authorize(ctx, userID, "servers:delete"); err != nil {
		return err
	}

	server, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	return s.repo.Delete(ctx, userID, server.ID)
}

// authorize resolves the current team and checks the permission on it.
// A missing team context on a write path surfaces explicitly rather than
// being swallowed.
func (s *ServerService) authorize(ctx context.Context, userID, permission string) error {
	team, err := s.teamCtx.CurrentTeam(ctx, userID)
	if err != nil {
		return err
	}
	if team == nil {
		return tenant.ErrNoTeamContext
	}
	if !s.resolver.HasTeamPermission(ctx, userID, team, permission) {
		return apperrors.ErrForbidden
	}
	return nil
}
