package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/opsdeck/internal/auth"
	"github.com/charlesng35/opsdeck/internal/handlers"
	"github.com/charlesng35/opsdeck/internal/services"
)

func registerAuthRoutes(r *gin.Engine, users *services.UserService, jwt *iauth.JWTService) {
	authHandler := handlers.NewAuthHandler(users, jwt)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}
}
