package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/handlers"
)

// Team routes authorize inside the service layer: ownership and membership
// checks depend on the target team in the URL, not the caller's current team.
func registerTeamRoutes(api *gin.RouterGroup, teamHandler *handlers.TeamHandler) {
	teams := api.Group("/teams")
	{
		teams.GET("", teamHandler.List)
		teams.GET("/:id", teamHandler.Get)
		teams.POST("", teamHandler.Create)
		teams.PATCH("/:id", teamHandler.Update)
		teams.DELETE("/:id", teamHandler.Delete)
		teams.GET("/:id/members", teamHandler.Members)
		teams.POST("/:id/members", teamHandler.AddMember)
		teams.DELETE("/:id/members/:userID", teamHandler.RemoveMember)
		teams.POST("/:id/invitations", teamHandler.Invite)
		teams.PUT("/:id/switch", teamHandler.Switch)
	}
}
