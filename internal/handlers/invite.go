package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
)

// InviteHandler exposes the invite lifecycle: create, accept, decline, revoke.
type InviteHandler struct {
	membership *services.MembershipService
}

func NewInviteHandler(membership *services.MembershipService) *InviteHandler {
	return &InviteHandler{membership: membership}
}

type createInviteRequest struct {
	// User is a user id or email address resolved through the directory.
	User string `json:"user" binding:"required"`
}

// Create invites a user to a team.
// POST /api/teams/:id/invites
func (h *InviteHandler) Create(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	invite, err := h.membership.InviteMember(teamID, middleware.GetUserID(c), req.User)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, invite)
}

// Accept joins the caller to the team their invite points at.
// POST /api/teams/:id/invites/accept
func (h *InviteHandler) Accept(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	team, err := h.membership.AcceptInvite(teamID, middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, team)
}

// Decline removes the caller's outstanding invite.
// POST /api/teams/:id/invites/decline
func (h *InviteHandler) Decline(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.membership.DeclineInvite(teamID, middleware.GetUserID(c)); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

// Revoke withdraws an invite on behalf of the team.
// DELETE /api/teams/:id/invites/:userId
func (h *InviteHandler) Revoke(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	if err := h.membership.RevokeInvite(teamID, middleware.GetUserID(c), targetID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

// ListMine returns the outstanding invites addressed to the caller.
// GET /api/invites
func (h *InviteHandler) ListMine(c *gin.Context) {
	invites, err := h.membership.ListMyInvites(middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, invites)
}
