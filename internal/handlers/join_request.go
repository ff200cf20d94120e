package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
)

// JoinRequestHandler exposes the join-request lifecycle.
type JoinRequestHandler struct {
	membership *services.MembershipService
}

func NewJoinRequestHandler(membership *services.MembershipService) *JoinRequestHandler {
	return &JoinRequestHandler{membership: membership}
}

type createJoinRequest struct {
	Message string `json:"message"`
}

type respondJoinRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// Create files a request to join a public team.
// POST /api/teams/:id/join-requests
func (h *JoinRequestHandler) Create(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req createJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	jr, err := h.membership.CreateJoinRequest(teamID, middleware.GetUserID(c), req.Message)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, jr)
}

// List returns a team's join requests, optionally filtered by status.
// GET /api/teams/:id/join-requests?status=pending
func (h *JoinRequestHandler) List(c *gin.Context) {
	teamID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	status := models.JoinRequestStatus(c.Query("status"))
	requests, err := h.membership.ListJoinRequests(teamID, middleware.GetUserID(c), status)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, requests)
}

// Respond approves or rejects a pending join request.
// POST /api/join-requests/:id/respond
func (h *JoinRequestHandler) Respond(c *gin.Context) {
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req respondJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	jr, err := h.membership.RespondToJoinRequest(requestID, middleware.GetUserID(c), *req.Accept)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, jr)
}

// Cancel withdraws the caller's own pending join request.
// POST /api/join-requests/:id/cancel
func (h *JoinRequestHandler) Cancel(c *gin.Context) {
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	jr, err := h.membership.CancelJoinRequest(requestID, middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, jr)
}

// ListMine returns the join requests the caller has filed.
// GET /api/join-requests
func (h *JoinRequestHandler) ListMine(c *gin.Context) {
	requests, err := h.membership.ListMyJoinRequests(middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, requests)
}
