package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/middleware"
	"github.com/charlesng35/opsdeck/internal/services"
	"github.com/charlesng35/opsdeck/pkg/response"
)

// ServerHandler exposes the current team's servers.
type ServerHandler struct {
	svc *services.ServerService
}

type updateServerRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=128"`
	ServerType *string `json:"server_type" validate:"omitempty,max=32"`
	Region     *string `json:"region" validate:"omitempty,max=64"`
}

// NewServerHandler constructs a ServerHandler.
func NewServerHandler(svc *services.ServerService) *ServerHandler {
	return &ServerHandler{svc: svc}
}

// GET /api/servers
func (h *ServerHandler) List(c *gin.Context) {
	servers, err := h.svc.List(requestContext(c), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, servers)
}

// GET /api/servers/:id
func (h *ServerHandler) Get(c *gin.Context) {
	server, err := h.svc.Get(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, server)
}

// POST /api/servers
func (h *ServerHandler) Create(c *gin.Context) {
	var body services.CreateServerInput
	if !bindAndValidate(c, &body) {
		return
	}

	server, err := h.svc.Create(requestContext(c), middleware.UserID(c), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, server)
}

// PATCH /api/servers/:id
func (h *ServerHandler) Update(c *gin.Context) {
	var body updateServerRequest
	if !bindAndValidate(c, &body) {
		return
	}

	values := map[string]any{}
	if body.Name != nil {
		values["name"] = *body.Name
	}
	if body.ServerType != nil {
		values["server_type"] = *body.ServerType
	}
	if body.Region != nil {
		values["region"] = *body.Region
	}

	if err := h.svc.Update(requestContext(c), middleware.UserID(c), c.Param("id"), values); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// DELETE /api/servers/:id
func (h *ServerHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
