package services

import (
	"encoding/json"
	"time"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/logger"
	"gorm.io/gorm"
)

// AuditService records committed membership decisions. Writes are best-effort
// and never fail the operation that produced them.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes an info-level audit entry. Safe on a nil receiver so callers
// can be wired without auditing in tests.
func (s *AuditService) Record(module, action, message string, actorID, teamID uint, extra interface{}) {
	if s == nil || s.db == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	var actor *uint
	if actorID > 0 {
		actor = &actorID
	}
	var team *uint
	if teamID > 0 {
		team = &teamID
	}

	entry := &models.AuditLog{
		Level:     "info",
		Module:    module,
		Action:    action,
		Message:   message,
		ActorID:   actor,
		TeamID:    team,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Warnf("[Audit] failed to write entry: %v", err)
	}
}

type AuditListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Module   string `form:"module"`
	TeamID   *uint  `form:"team_id"`
}

type AuditListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.AuditLog `json:"items"`
}

// List returns paginated audit entries, newest first.
func (s *AuditService) List(req *AuditListRequest) (*AuditListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}

	query := s.db.Model(&models.AuditLog{})
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.TeamID != nil {
		query = query.Where("team_id = ?", *req.TeamID)
	}

	var total int64
	query.Count(&total)

	var items []models.AuditLog
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &AuditListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}
