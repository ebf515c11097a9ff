package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/middleware"
	"github.com/charlesng35/opsdeck/internal/services"
	"github.com/charlesng35/opsdeck/pkg/response"
)

// ServerProviderHandler exposes the current team's provider connections.
type ServerProviderHandler struct {
	svc *services.ServerProviderService
}

type createProviderRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=128"`
	ProviderType string `json:"provider_type" validate:"required,max=32"`
}

// NewServerProviderHandler constructs a ServerProviderHandler.
func NewServerProviderHandler(svc *services.ServerProviderService) *ServerProviderHandler {
	return &ServerProviderHandler{svc: svc}
}

// GET /api/server-providers
func (h *ServerProviderHandler) List(c *gin.Context) {
	providers, err := h.svc.List(requestContext(c), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, providers)
}

// GET /api/server-providers/:id
func (h *ServerProviderHandler) Get(c *gin.Context) {
	provider, err := h.svc.Get(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, provider)
}

// POST /api/server-providers
func (h *ServerProviderHandler) Create(c *gin.Context) {
	var body createProviderRequest
	if !bindAndValidate(c, &body) {
		return
	}

	provider, err := h.svc.Create(requestContext(c), middleware.UserID(c), services.CreateServerProviderInput{
		Name:         body.Name,
		ProviderType: body.ProviderType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, provider)
}

// DELETE /api/server-providers/:id
func (h *ServerProviderHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
