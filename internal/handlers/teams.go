package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/opsdeck/internal/middleware"
	"github.com/charlesng35/opsdeck/internal/services"
	"github.com/charlesng35/opsdeck/pkg/errors"
	"github.com/charlesng35/opsdeck/pkg/response"
)

// TeamHandler exposes the team lifecycle over HTTP.
type TeamHandler struct {
	svc *services.TeamService
}

type createTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}

type updateTeamRequest struct {
	Name *string `json:"name" validate:"omitempty,min=2,max=128"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,max=64"`
}

// NewTeamHandler constructs a TeamHandler.
func NewTeamHandler(svc *services.TeamService) *TeamHandler {
	return &TeamHandler{svc: svc}
}

// GET /api/teams
func (h *TeamHandler) List(c *gin.Context) {
	teams, err := h.svc.List(requestContext(c), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// GET /api/teams/:id
func (h *TeamHandler) Get(c *gin.Context) {
	team, err := h.svc.Get(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	var body createTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	team, err := h.svc.Create(requestContext(c), middleware.UserID(c), services.CreateTeamInput{
		Name: strings.TrimSpace(body.Name),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, team)
}

// PATCH /api/teams/:id
func (h *TeamHandler) Update(c *gin.Context) {
	var body updateTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Name == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	team, err := h.svc.Update(requestContext(c), middleware.UserID(c), c.Param("id"), services.UpdateTeamInput{
		Name: body.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// DELETE /api/teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	if err := h.svc.Purge(requestContext(c), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/teams/:id/members
func (h *TeamHandler) Members(c *gin.Context) {
	members, err := h.svc.Members(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// POST /api/teams/:id/members
func (h *TeamHandler) AddMember(c *gin.Context) {
	var body addMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	err := h.svc.AddMember(requestContext(c), middleware.UserID(c), c.Param("id"), body.Email, body.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"added": true})
}

// DELETE /api/teams/:id/members/:userID
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveUser(requestContext(c), middleware.UserID(c), c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// POST /api/teams/:id/invitations
func (h *TeamHandler) Invite(c *gin.Context) {
	var body addMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	invitation, token, err := h.svc.InviteMember(requestContext(c), middleware.UserID(c), c.Param("id"), body.Email, body.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"invitation": invitation,
		"token":      token,
	})
}

// PUT /api/teams/:id/switch
func (h *TeamHandler) Switch(c *gin.Context) {
	if err := h.svc.SwitchTeam(requestContext(c), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"switched": true})
}
