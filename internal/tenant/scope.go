package tenant

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/pkg/metrics"
)

// teamColumn is the tenant discriminator column every scoped entity carries.
const teamColumn = "team_id"

// ErrNoTeamContext signals a write attempted without a resolvable team.
// Reads never return it; they fail closed with zero rows instead.
var ErrNoTeamContext = errors.New("tenant: no team context")

// Scope injects the active team's id into queries against tenant-scoped
// entities. The team is resolved when the query executes, not when it is
// built, so a team switch between construction and execution is honoured.
type Scope struct {
	teams *teamctx.Service
}

// NewScope constructs the isolation scope.
func NewScope(teams *teamctx.Service) (*Scope, error) {
	if teams == nil {
		return nil, errors.New("tenant: team context service is required")
	}
	return &Scope{teams: teams}, nil
}

// TeamID resolves the active team for the user. ok is false when no team
// context exists.
func (s *Scope) TeamID(ctx context.Context, userID string) (string, bool, error) {
	return s.teams.CurrentTeamID(ctx, userID)
}

// Apply returns the query with the tenant predicate attached. When no team
// context can be resolved the query is poisoned with an always-false
// predicate: ambiguity about the tenant must never widen visibility.
func (s *Scope) Apply(ctx context.Context, userID string, db *gorm.DB) *gorm.DB {
	teamID, ok, err := s.teams.CurrentTeamID(ctx, userID)
	if err != nil || !ok {
		metrics.TenantScopeQueries.WithLabelValues("denied").Inc()
		return db.Where("1 = 0")
	}

	metrics.TenantScopeQueries.WithLabelValues("scoped").Inc()
	return db.Clauses(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Name: teamColumn}, Value: teamID},
	}})
}

// Strip removes the scope's own predicate from an already-scoped query:
// only equality predicates on the team column are dropped. Any other
// condition, including IN or range predicates on the same column and every
// predicate the caller added, survives in its original order.
func (s *Scope) Strip(db *gorm.DB) *gorm.DB {
	metrics.TenantScopeQueries.WithLabelValues("unscoped").Inc()

	c, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return db
	}
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return db
	}

	kept := make([]clause.Expression, 0, len(where.Exprs))
	for _, expr := range where.Exprs {
		if eq, isEq := expr.(clause.Eq); isEq && columnName(eq.Column) == teamColumn {
			continue
		}
		kept = append(kept, expr)
	}

	where.Exprs = kept
	c.Expression = where
	db.Statement.Clauses["WHERE"] = c
	return db
}

func columnName(column interface{}) string {
	switch v := column.(type) {
	case string:
		return v
	case clause.Column:
		return v.Name
	default:
		return ""
	}
}
