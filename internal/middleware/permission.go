package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/pkg/errors"
	"github.com/charlesng35/opsdeck/pkg/metrics"
	"github.com/charlesng35/opsdeck/pkg/response"
)

// RequireTeamPermission checks that the authenticated user holds the given
// permission on their current team. Denials are explicit 403s; they never
// degrade into empty results on write paths.
func RequireTeamPermission(resolver *authz.Resolver, teams *teamctx.Service, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		team, err := teams.CurrentTeam(c.Request.Context(), userID)
		if err != nil {
			metrics.TeamPermissionChecks.WithLabelValues(permission, "error").Inc()
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		if team == nil {
			metrics.TeamPermissionChecks.WithLabelValues(permission, "denied").Inc()
			response.Error(c, errors.ErrTeamContextRequired)
			c.Abort()
			return
		}

		if !resolver.HasTeamPermission(c.Request.Context(), userID, team, permission) {
			metrics.TeamPermissionChecks.WithLabelValues(permission, "denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		metrics.TeamPermissionChecks.WithLabelValues(permission, "allowed").Inc()
		c.Next()
	}
}
