package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/logger"
	"gorm.io/gorm"
)

// Membership event types delivered to users.
const (
	EventInviteCreated       = "team.invite.created"
	EventInviteAccepted      = "team.invite.accepted"
	EventInviteDeclined      = "team.invite.declined"
	EventInviteRevoked       = "team.invite.revoked"
	EventJoinRequestCreated  = "team.join_request.created"
	EventJoinRequestApproved = "team.join_request.approved"
	EventJoinRequestRejected = "team.join_request.rejected"
	EventMemberRemoved       = "team.member.removed"
	EventMemberRoleChanged   = "team.member.role_changed"
	EventTeamArchived        = "team.archived"
)

// NotificationSink is the fire-and-forget event delivery contract. Errors are
// caught and logged by the caller; they never change the result of a
// membership operation.
type NotificationSink interface {
	Notify(userID uint, eventType string, payload map[string]interface{}) error
}

// QueueSink enqueues notifications for asynchronous delivery.
type QueueSink struct {
	queue TaskQueue
}

func NewQueueSink(queue TaskQueue) *QueueSink {
	return &QueueSink{queue: queue}
}

func (s *QueueSink) Notify(userID uint, eventType string, payload map[string]interface{}) error {
	return s.queue.Enqueue(&NotificationTask{
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
	})
}

// NotificationService delivers membership events to a user's configured IM
// webhook channels. It runs as the task-queue processor.
type NotificationService struct {
	db  *gorm.DB
	cfg *config.NotificationConfig
}

func NewNotificationService(db *gorm.DB, cfg *config.NotificationConfig) *NotificationService {
	return &NotificationService{db: db, cfg: cfg}
}

// ProcessNotificationTask posts the event to every active channel of the
// target user. Per-channel failures are logged and do not stop delivery to
// the remaining channels.
func (s *NotificationService) ProcessNotificationTask(ctx context.Context, task *NotificationTask) error {
	if s.cfg != nil && !s.cfg.Enabled {
		return nil
	}

	var channels []models.NotificationChannel
	if err := s.db.Where("user_id = ? AND is_active = ?", task.UserID, true).
		Find(&channels).Error; err != nil {
		return err
	}
	if len(channels) == 0 {
		logger.Debug().Uint("user_id", task.UserID).Str("event", task.EventType).
			Msg("no active notification channels, dropping event")
		return nil
	}

	msg := buildEventMessage(task.EventType, task.Payload)

	var lastErr error
	for i := range channels {
		ch := &channels[i]
		if err := s.sendToChannel(ch, task, msg); err != nil {
			logger.Warnf("[Notification] delivery to channel %d (%s) failed: %v", ch.ID, ch.Type, err)
			lastErr = err
		}
	}
	return lastErr
}

// SendTest delivers a test message to a single channel so users can verify
// their webhook configuration.
func (s *NotificationService) SendTest(ch *models.NotificationChannel) error {
	task := &NotificationTask{UserID: ch.UserID, EventType: "test"}
	return s.sendToChannel(ch, task, "TeamForge notification channel test: configuration OK.")
}

// buildEventMessage renders a human-readable message for an event.
func buildEventMessage(eventType string, payload map[string]interface{}) string {
	teamName, _ := payload["team_name"].(string)

	switch eventType {
	case EventInviteCreated:
		return fmt.Sprintf("You have been invited to join team %q.", teamName)
	case EventInviteAccepted:
		return fmt.Sprintf("Your invite to team %q was accepted.", teamName)
	case EventInviteDeclined:
		return "Your team invite was declined."
	case EventInviteRevoked:
		return fmt.Sprintf("Your invite to team %q was revoked.", teamName)
	case EventJoinRequestCreated:
		msg := fmt.Sprintf("New join request for team %q.", teamName)
		if note, ok := payload["message"].(string); ok && note != "" {
			return msg + " Message: " + note
		}
		return msg
	case EventJoinRequestApproved:
		return fmt.Sprintf("Your request to join team %q was approved. Welcome aboard!", teamName)
	case EventJoinRequestRejected:
		return fmt.Sprintf("Your request to join team %q was rejected.", teamName)
	case EventMemberRemoved:
		return fmt.Sprintf("You have been removed from team %q.", teamName)
	case EventMemberRoleChanged:
		role, _ := payload["role"].(string)
		if role == "" {
			if r, ok := payload["role"].(models.TeamRole); ok {
				role = string(r)
			}
		}
		return fmt.Sprintf("Your role in team %q is now %s.", teamName, role)
	case EventTeamArchived:
		return fmt.Sprintf("Team %q has been archived.", teamName)
	default:
		return fmt.Sprintf("Team event: %s", eventType)
	}
}

func (s *NotificationService) sendToChannel(ch *models.NotificationChannel, task *NotificationTask, msg string) error {
	switch ch.Type {
	case "wechat_work":
		payload := map[string]interface{}{
			"msgtype":  "markdown",
			"markdown": map[string]string{"content": msg},
		}
		return s.postJSON(ch.Webhook, payload)
	case "dingtalk":
		webhookURL := ch.Webhook
		if ch.Secret != "" {
			timestamp := time.Now().UnixMilli()
			sign := dingTalkSign(timestamp, ch.Secret)
			webhookURL = fmt.Sprintf("%s&timestamp=%d&sign=%s", ch.Webhook, timestamp, url.QueryEscape(sign))
		}
		payload := map[string]interface{}{
			"msgtype": "markdown",
			"markdown": map[string]string{
				"title": "TeamForge: " + task.EventType,
				"text":  msg,
			},
		}
		return s.postJSON(webhookURL, payload)
	case "feishu":
		if ch.Secret != "" {
			timestamp := time.Now().Unix()
			payload := map[string]interface{}{
				"timestamp": fmt.Sprintf("%d", timestamp),
				"sign":      feishuSign(timestamp, ch.Secret),
				"msg_type":  "text",
				"content":   map[string]string{"text": msg},
			}
			return s.postJSON(ch.Webhook, payload)
		}
		payload := map[string]interface{}{
			"msg_type": "text",
			"content":  map[string]string{"text": msg},
		}
		return s.postJSON(ch.Webhook, payload)
	case "slack":
		payload := map[string]interface{}{
			"text": msg,
			"blocks": []map[string]interface{}{
				{
					"type": "section",
					"text": map[string]string{"type": "mrkdwn", "text": msg},
				},
			},
		}
		return s.postJSON(ch.Webhook, payload)
	default:
		payload := map[string]interface{}{
			"event_type": task.EventType,
			"user_id":    task.UserID,
			"message":    msg,
			"payload":    task.Payload,
		}
		return s.postJSON(ch.Webhook, payload)
	}
}

func dingTalkSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func feishuSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *NotificationService) postJSON(webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	timeout := 10 * time.Second
	if s.cfg != nil && s.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(s.cfg.TimeoutSeconds) * time.Second
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
