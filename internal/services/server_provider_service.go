package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"

	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/internal/tenant"
	apperrors "github.com/charlesng35/opsdeck/pkg/errors"
)

// ServerProviderRepository is the tenant-scoped data access for providers.
type ServerProviderRepository = tenant.Repository[models.ServerProvider, *models.ServerProvider]

// CreateServerProviderInput captures a new provider connection.
type CreateServerProviderInput struct {
	Name         string `json:"name" validate:"required"`
	ProviderType string `json:"provider_type" validate:"required"`
	Credentials  []byte `json:"-"`
}

// ServerProviderService manages a team's hosting-provider connections.
// Credential contents are opaque bytes here; callers encrypt before handing
// them over.
type ServerProviderService struct {
	repo     *ServerProviderRepository
	resolver *authz.Resolver
	teamCtx  *teamctx.Service
}

// NewServerProviderService constructs a ServerProviderService.
func NewServerProviderService(repo *ServerProviderRepository, resolver *authz.Resolver, teamCtx *teamctx.Service) (*ServerProviderService, error) {
	if repo == nil {
		return nil, errors.New("server provider service: repository is required")
	}
	if resolver == nil {
		return nil, errors.New("server provider service: resolver is required")
	}
	if teamCtx == nil {
		return nil, errors.New("server provider service: team context is required")
	}
	return &ServerProviderService{repo: repo, resolver: resolver, teamCtx: teamCtx}, nil
}

// List returns the current team's provider connections.
func (s *ServerProviderService) List(ctx context.Context, userID string) ([]models.ServerProvider, error) {
	return s.repo.List(ensureContext(ctx), userID)
}

// Get fetches one of the current team's provider connections.
func (s *ServerProviderService) Get(ctx context.Context, userID, id string) (*models.ServerProvider, error) {
	return s.repo.Get(ensureContext(ctx), userID, id)
}

// Create registers a provider connection under the current team.
func (s *ServerProviderService) Create(ctx context.Context, userID string, input CreateServerProviderInput) (*models.ServerProvider, error) {
	ctx = ensureContext(ctx)

	if err := s.authorize(ctx, userID, "server-providers:create"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	providerType := strings.TrimSpace(input.ProviderType)
	if name == "" || providerType == "" {
		return nil, apperrors.NewBadRequest("provider name and type are required")
	}

	provider := &models.ServerProvider{
		Name:         name,
		ProviderType: providerType,
		Credentials:  datatypes.JSON(input.Credentials),
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, userID, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// Update applies a partial update to one of the current team's providers.
func (s *ServerProviderService) Update(ctx context.Context, userID, id string, values map[string]any) error {
	ctx = ensureContext(ctx)

	if err := s.authorize(ctx, userID, "server-providers:update"); err != nil {
		return err
	}
	return s.repo.Updates(ctx, userID, id, values)
}

// Delete removes one of the current team's providers.
func (s *ServerProviderService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	if err := s.authorize(ctx, userID, "server-providers:delete"); err != nil {
		return err
	}
	return s.repo.Delete(ctx, userID, id)
}

func (s *ServerProviderService) authorize(ctx context.Context, userID, permission string) error {
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
