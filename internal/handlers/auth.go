package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/auth"
	"github.com/charlesng35/opsdeck/internal/services"
	"github.com/charlesng35/opsdeck/pkg/response"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	users *services.UserService
	jwt   *auth.JWTService
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService, jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var body services.RegisterUserInput
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.users.Register(requestContext(c), body)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"user":  user,
		"token": token,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), body.Email, body.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":  user,
		"token": token,
	})
}
