package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
)

// TeamHandler exposes team lifecycle and settings endpoints.
type TeamHandler struct {
	membership *services.MembershipService
	defaults   *config.MembershipConfig
}

func NewTeamHandler(membership *services.MembershipService, defaults *config.MembershipConfig) *TeamHandler {
	return &TeamHandler{membership: membership, defaults: defaults}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// Create creates a team owned by the caller.
// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	var req services.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.MaxMembers == 0 {
		req.MaxMembers = h.defaults.DefaultMaxMembers
	}

	team, err := h.membership.CreateTeam(middleware.GetUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, team)
}

// List returns a paginated team listing.
// GET /api/teams
func (h *TeamHandler) List(c *gin.Context) {
	var req services.TeamListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.membership.ListTeams(&req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Get returns a team with its members and outstanding invites.
// GET /api/teams/:id
func (h *TeamHandler) Get(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	team, err := h.membership.GetTeam(teamID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, team)
}

// UpdateSettings applies a partial settings update.
// PATCH /api/teams/:id/settings
func (h *TeamHandler) UpdateSettings(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	team, err := h.membership.UpdateTeamSettings(teamID, middleware.GetUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, team)
}

// Archive moves a team to its terminal archived state.
// POST /api/teams/:id/archive
func (h *TeamHandler) Archive(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.membership.ArchiveTeam(teamID, middleware.GetUserID(c)); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
