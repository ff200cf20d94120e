package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationChannel is a per-user IM webhook endpoint for membership event
// delivery. Type selects the payload format.
type NotificationChannel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Type      string         `gorm:"size:50;not null" json:"type"` // wechat_work, dingtalk, feishu, slack, generic
	Webhook   string         `gorm:"size:500;not null" json:"webhook"`
	Secret    string         `gorm:"size:255" json:"-"` // HMAC signing secret (dingtalk, feishu)
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (NotificationChannel) TableName() string { return "notification_channels" }
