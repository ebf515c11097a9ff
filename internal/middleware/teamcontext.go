package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/pkg/errors"
	"github.com/charlesng35/opsdeck/pkg/response"
)

// CtxTeamIDKey holds the resolved current team id for downstream handlers.
const CtxTeamIDKey = "teamID"

// RequireTeamContext blocks authenticated requests that have no resolvable
// current team before they reach any tenant-scoped handler. Clients receive
// a stable error code telling them to select a team.
func RequireTeamContext(teams *teamctx.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		team, err := teams.CurrentTeam(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		if team == nil {
			response.Error(c, errors.ErrTeamContextRequired)
			c.Abort()
			return
		}

		c.Set(CtxTeamIDKey, team.ID)
		c.Next()
	}
}
