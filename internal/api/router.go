package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/charlesng35/opsdeck/internal/auth"
	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/handlers"
	"github.com/charlesng35/opsdeck/internal/middleware"
	"github.com/charlesng35/opsdeck/internal/services"
	"github.com/charlesng35/opsdeck/internal/teamctx"
)

// Services bundles the wired application services the router depends on.
type Services struct {
	Users     *services.UserService
	Teams     *services.TeamService
	Servers   *services.ServerService
	Providers *services.ServerProviderService
	Resolver  *authz.Resolver
	TeamCtx   *teamctx.Service
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(jwt *iauth.JWTService, svcs Services) (*gin.Engine, error) {
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if svcs.Users == nil || svcs.Teams == nil || svcs.Servers == nil || svcs.Providers == nil {
		return nil, fmt.Errorf("all application services must be provided")
	}
	if svcs.Resolver == nil || svcs.TeamCtx == nil {
		return nil, fmt.Errorf("resolver and team context must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	registerAuthRoutes(r, svcs.Users, jwt)

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	registerTeamRoutes(api, handlers.NewTeamHandler(svcs.Teams))
	registerServerRoutes(api, handlers.NewServerHandler(svcs.Servers), svcs)
	registerServerProviderRoutes(api, handlers.NewServerProviderHandler(svcs.Providers), svcs)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}
