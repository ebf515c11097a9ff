package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/handlers"
	"github.com/charlesng35/opsdeck/internal/middleware"
)

func registerServerProviderRoutes(api *gin.RouterGroup, providerHandler *handlers.ServerProviderHandler, svcs Services) {
	requireTeam := middleware.RequireTeamContext(svcs.TeamCtx)

	providers := api.Group("/server-providers")
	providers.Use(requireTeam)
	{
		providers.GET("", providerHandler.List)
		providers.GET("/:id", providerHandler.Get)
		providers.POST("", middleware.RequireTeamPermission(svcs.Resolver, svcs.TeamCtx, "server-providers:create"), providerHandler.Create)
		providers.DELETE("/:id", middleware.RequireTeamPermission(svcs.Resolver, svcs.TeamCtx, "server-providers:delete"), providerHandler.Delete)
	}
}
