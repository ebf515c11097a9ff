package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/handlers"
	"github.com/charlesng35/opsdeck/internal/middleware"
)

func registerServerRoutes(api *gin.RouterGroup, serverHandler *handlers.ServerHandler, svcs Services) {
	requireTeam := middleware.RequireTeamContext(svcs.TeamCtx)

	servers := api.Group("/servers")
	servers.Use(requireTeam)
	{
		servers.GET("", serverHandler.List)
		servers.GET("/:id", serverHandler.Get)
		servers.POST("", middleware.RequireTeamPermission(svcs.Resolver, svcs.TeamCtx, "servers:create"), serverHandler.Create)
		servers.PATCH("/:id", middleware.RequireTeamPermission(svcs.Resolver, svcs.TeamCtx, "servers:update"), serverHandler.Update)
		servers.DELETE("/:id", middleware.RequireTeamPermission(svcs.Resolver, svcs.TeamCtx, "servers:delete"), serverHandler.Delete)
	}
}
