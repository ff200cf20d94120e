package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

// NotificationChannelHandler manages a user's IM webhook channels.
type NotificationChannelHandler struct {
	db       *gorm.DB
	notifier *services.NotificationService
}

func NewNotificationChannelHandler(db *gorm.DB, notifier *services.NotificationService) *NotificationChannelHandler {
	return &NotificationChannelHandler{db: db, notifier: notifier}
}

type channelRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Webhook  string `json:"webhook" binding:"required"`
	Secret   string `json:"secret"`
	IsActive *bool  `json:"is_active"`
}

func validChannelType(t string) bool {
	switch t {
	case "wechat_work", "dingtalk", "feishu", "slack", "generic":
		return true
	}
	return false
}

// List returns the caller's channels.
// GET /api/notification-channels
func (h *NotificationChannelHandler) List(c *gin.Context) {
	var channels []models.NotificationChannel
	if err := h.db.Where("user_id = ?", middleware.GetUserID(c)).
		Order("created_at DESC").Find(&channels).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, channels)
}

// Create adds a channel for the caller.
// POST /api/notification-channels
func (h *NotificationChannelHandler) Create(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !validChannelType(req.Type) {
		response.BadRequest(c, "invalid channel type")
		return
	}

	channel := models.NotificationChannel{
		UserID:   middleware.GetUserID(c),
		Name:     req.Name,
		Type:     req.Type,
		Webhook:  req.Webhook,
		Secret:   req.Secret,
		IsActive: true,
	}
	if req.IsActive != nil {
		channel.IsActive = *req.IsActive
	}

	if err := h.db.Create(&channel).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Created(c, channel)
}

// Update modifies one of the caller's channels.
// PUT /api/notification-channels/:id
func (h *NotificationChannelHandler) Update(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var channel models.NotificationChannel
	if err := h.db.Where("id = ? AND user_id = ?", channelID, middleware.GetUserID(c)).
		First(&channel).Error; err != nil {
		response.NotFound(c, "channel not found")
		return
	}

	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !validChannelType(req.Type) {
		response.BadRequest(c, "invalid channel type")
		return
	}

	channel.Name = req.Name
	channel.Type = req.Type
	channel.Webhook = req.Webhook
	if req.Secret != "" {
		channel.Secret = req.Secret
	}
	if req.IsActive != nil {
		channel.IsActive = *req.IsActive
	}

	if err := h.db.Save(&channel).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, channel)
}

// Delete removes one of the caller's channels.
// DELETE /api/notification-channels/:id
func (h *NotificationChannelHandler) Delete(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result := h.db.Where("id = ? AND user_id = ?", channelID, middleware.GetUserID(c)).
		Delete(&models.NotificationChannel{})
	if result.Error != nil {
		response.ServerError(c, result.Error.Error())
		return
	}
	if result.RowsAffected == 0 {
		response.NotFound(c, "channel not found")
		return
	}
	response.Success(c, nil)
}

// Test posts a test message through one of the caller's channels.
// POST /api/notification-channels/:id/test
func (h *NotificationChannelHandler) Test(c *gin.Context) {
	channelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var channel models.NotificationChannel
	if err := h.db.Where("id = ? AND user_id = ?", channelID, middleware.GetUserID(c)).
		First(&channel).Error; err != nil {
		response.NotFound(c, "channel not found")
		return
	}

	if err := h.notifier.SendTest(&channel); err != nil {
		response.BadRequest(c, "test delivery failed: "+err.Error())
		return
	}
	response.Success(c, nil)
}
