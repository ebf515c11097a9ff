package teamctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/cache"
	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/pkg/logger"
	"github.com/charlesng35/opsdeck/pkg/metrics"
)

const (
	cacheKeyPrefix = "user_team_context_"
	cacheTTL       = 300 * time.Second
)

// Service resolves and caches the current team for authenticated users.
// The cache is advisory: entries are always reconstructible from the user's
// current_team_id and must be invalidated whenever that column changes.
type Service struct {
	db       *gorm.DB
	store    cache.Store
	resolver *authz.Resolver
	log      *zap.Logger
}

// snapshot is the cached representation of a resolution. Absence is cached
// too so that users without a team do not hit the database on every query.
type snapshot struct {
	Team   *models.Team `json:"team,omitempty"`
	Absent bool         `json:"absent,omitempty"`
}

// NewService constructs the team context service.
func NewService(db *gorm.DB, store cache.Store, resolver *authz.Resolver) (*Service, error) {
	if db == nil {
		return nil, errors.New("teamctx: db is required")
	}
	if store == nil {
		return nil, errors.New("teamctx: cache store is required")
	}
	if resolver == nil {
		return nil, errors.New("teamctx: resolver is required")
	}
	return &Service{
		db:       db,
		store:    store,
		resolver: resolver,
		log:      logger.WithModule("teamctx"),
	}, nil
}

// CurrentTeam returns the team the user is currently operating on, or nil
// when no team context can be resolved. An empty user id (unauthenticated
// caller) always resolves to nil without touching storage.
func (s *Service) CurrentTeam(ctx context.Context, userID string) (*models.Team, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	key := cacheKey(userID)
	if raw, ok, err := s.store.Get(ctx, key); err == nil && ok {
		var snap snapshot
		if decodeErr := json.Unmarshal(raw, &snap); decodeErr == nil {
			metrics.TeamContextLookups.WithLabelValues("hit").Inc()
			if snap.Absent {
				return nil, nil
			}
			return snap.Team, nil
		}
		// Corrupt entry: drop it and fall through to a fresh load.
		_ = s.store.Delete(ctx, key)
	} else if err != nil {
		s.log.Warn("team context cache read failed", zap.Error(err))
	}

	metrics.TeamContextLookups.WithLabelValues("miss").Inc()

	team, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := snapshot{Team: team, Absent: team == nil}
	if raw, err := json.Marshal(snap); err == nil {
		if err := s.store.Set(ctx, key, raw, cacheTTL); err != nil {
			s.log.Warn("team context cache write failed", zap.Error(err))
		}
	}

	if team == nil {
		metrics.TeamContextLookups.WithLabelValues("absent").Inc()
	}
	return team, nil
}

// CurrentTeamID returns the id of the current team, with ok reporting
// whether a team context exists at all.
func (s *Service) CurrentTeamID(ctx context.Context, userID string) (string, bool, error) {
	team, err := s.CurrentTeam(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if team == nil {
		return "", false, nil
	}
	return team.ID, true, nil
}

// ClearCache evicts the cached team context for a user. Safe to call when
// no entry exists; callers mutating current_team_id must invoke this before
// reporting success.
func (s *Service) ClearCache(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	return s.store.Delete(ctx, cacheKey(userID))
}

// CanAccessTeam reports whether the user may act within the given team.
// Unauthenticated callers can access nothing.
func (s *Service) CanAccessTeam(ctx context.Context, userID string, team *models.Team) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	return s.resolver.BelongsToTeam(ctx, userID, team)
}

// load resolves the current team from storage, lazily adopting the user's
// personal team when current_team_id has never been set.
func (s *Service) load(ctx context.Context, userID string) (*models.Team, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("teamctx: load user: %w", err)
	}

	if user.CurrentTeamID != nil {
		var team models.Team
		err := s.db.WithContext(ctx).Take(&team, "id = ?", *user.CurrentTeamID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Dangling reference, e.g. the team was purged. Treat as absent.
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("teamctx: load current team: %w", err)
		}
		return &team, nil
	}

	var personal models.Team
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND personal_team = ?", userID, true).
		Take(&personal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("teamctx: load personal team: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("current_team_id", personal.ID).Error; err != nil {
		return nil, fmt.Errorf("teamctx: adopt personal team: %w", err)
	}

	return &personal, nil
}

func cacheKey(userID string) string {
	return cacheKeyPrefix + userID
}
