package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
)

// MemberHandler exposes membership mutation endpoints.
type MemberHandler struct {
	membership *services.MembershipService
}

func NewMemberHandler(membership *services.MembershipService) *MemberHandler {
	return &MemberHandler{membership: membership}
}

type updateRoleRequest struct {
	Role models.TeamRole `json:"role" binding:"required"`
}

// Remove removes a member from a team. Members may remove themselves;
// removing anyone else requires owner or admin.
// DELETE /api/teams/:id/members/:userId
func (h *MemberHandler) Remove(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	if err := h.membership.RemoveMember(teamID, middleware.GetUserID(c), targetID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

// UpdateRole changes a member's role.
// PUT /api/teams/:id/members/:userId/role
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.membership.UpdateMemberRole(teamID, middleware.GetUserID(c), targetID, req.Role); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
