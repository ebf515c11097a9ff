package tenant

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/models"
	apperrors "github.com/charlesng35/opsdeck/pkg/errors"
)

// Repository is the data-access layer for one tenant-scoped entity type.
// Every read, update and delete composes the isolation scope by
// construction; call sites cannot forget the team filter. The PT parameter
// ties the entity's pointer type to the TenantOwned contract.
type Repository[T any, PT interface {
	*T
	models.TenantOwned
}] struct {
	db       *gorm.DB
	scope    *Scope
	bypassed bool
}

// NewRepository constructs a scoped repository for the entity type T.
func NewRepository[T any, PT interface {
	*T
	models.TenantOwned
}](db *gorm.DB, scope *Scope) (*Repository[T, PT], error) {
	if db == nil {
		return nil, errors.New("tenant: db is required")
	}
	if scope == nil {
		return nil, errors.New("tenant: scope is required")
	}
	return &Repository[T, PT]{db: db, scope: scope}, nil
}

// WithoutScope returns a repository variant that skips tenant filtering.
// Reserved for trusted internal paths such as cross-team reporting; regular
// handlers must never hold one.
func (r *Repository[T, PT]) WithoutScope() *Repository[T, PT] {
	return &Repository[T, PT]{db: r.db, scope: r.scope, bypassed: true}
}

// List returns all rows visible to the user's current team.
func (r *Repository[T, PT]) List(ctx context.Context, userID string) ([]T, error) {
	var out []T
	if err := r.query(ctx, userID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("tenant: list: %w", err)
	}
	return out, nil
}

// Get fetches a single row by id within the current team. Rows belonging
// to other teams are indistinguishable from missing rows.
func (r *Repository[T, PT]) Get(ctx context.Context, userID, id string) (PT, error) {
	entity := PT(new(T))
	err := r.query(ctx, userID).Take(entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: get: %w", err)
	}
	return entity, nil
}

// Create stamps the entity with the current team id and persists it.
// Unlike reads, a missing team context is an explicit error here: silently
// dropping a write would hide the denial from the caller.
func (r *Repository[T, PT]) Create(ctx context.Context, userID string, entity PT) error {
	teamID, ok, err := r.scope.TeamID(ctx, userID)
	if err != nil {
		return fmt.Errorf("tenant: resolve team: %w", err)
	}
	if !ok {
		return ErrNoTeamContext
	}

	entity.SetTeamID(teamID)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("tenant: create: %w", err)
	}
	return nil
}

// Updates applies a partial update to a row within the current team. The
// tenant column is immutable through this layer; the caller's map is left
// untouched.
func (r *Repository[T, PT]) Updates(ctx context.Context, userID, id string, values map[string]any) error {
	updates := make(map[string]any, len(values))
	for column, value := range values {
		if column == teamColumn {
			continue
		}
		updates[column] = value
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.query(ctx, userID).Model(PT(new(T))).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("tenant: update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a row within the current team.
func (r *Repository[T, PT]) Delete(ctx context.Context, userID, id string) error {
	res := r.query(ctx, userID).Where("id = ?", id).Delete(PT(new(T)))
	if res.Error != nil {
		return fmt.Errorf("tenant: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Count returns the number of rows visible to the user's current team.
func (r *Repository[T, PT]) Count(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.query(ctx, userID).Model(PT(new(T))).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("tenant: count: %w", err)
	}
	return count, nil
}

func (r *Repository[T, PT]) query(ctx context.Context, userID string) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.bypassed {
		// Strip guarantees no tenant equality predicate survives and
		// counts the query as unscoped.
		return r.scope.Strip(db)
	}
	return r.scope.Apply(ctx, userID, db)
}
