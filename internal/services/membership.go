package services

import (
	"fmt"

	"github.com/teamforge/teamforge/internal/errs"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/store"
	"github.com/teamforge/teamforge/pkg/logger"
)

// MembershipService coordinates every membership-changing operation: validate
// input, check permissions against a freshly-read snapshot, perform exactly
// one atomic store mutation, then emit a fire-and-forget notification. It
// holds no in-process lock on teams; correctness under concurrency comes from
// the store's conditional primitives.
type MembershipService struct {
	store     *store.TeamStore
	directory UserDirectory
	notifier  NotificationSink
	audit     *AuditService
}

func NewMembershipService(st *store.TeamStore, directory UserDirectory, notifier NotificationSink, audit *AuditService) *MembershipService {
	return &MembershipService{
		store:     st,
		directory: directory,
		notifier:  notifier,
		audit:     audit,
	}
}

type CreateTeamRequest struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	MaxMembers        int    `json:"max_members"`
	IsPublic          *bool  `json:"is_public"`
	AllowJoinRequests *bool  `json:"allow_join_requests"`
	RequireApproval   *bool  `json:"require_approval"`
}

type UpdateSettingsRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	MaxMembers        *int    `json:"max_members"`
	IsPublic          *bool   `json:"is_public"`
	AllowJoinRequests *bool   `json:"allow_join_requests"`
	RequireApproval   *bool   `json:"require_approval"`
}

// CreateTeam creates a team with the creator as its sole owner.
func (m *MembershipService) CreateTeam(creatorID uint, req *CreateTeamRequest) (*models.Team, error) {
	if req.Name == "" {
		return nil, errs.Validation("team name is required")
	}
	if req.MaxMembers < 1 {
		return nil, errs.Validation("max_members must be at least 1")
	}

	spec := &store.TeamSpec{
		Name:              req.Name,
		Description:       req.Description,
		MaxMembers:        req.MaxMembers,
		IsPublic:          true,
		AllowJoinRequests: true,
		RequireApproval:   true,
	}
	if req.IsPublic != nil {
		spec.IsPublic = *req.IsPublic
	}
	if req.AllowJoinRequests != nil {
		spec.AllowJoinRequests = *req.AllowJoinRequests
	}
	if req.RequireApproval != nil {
		spec.RequireApproval = *req.RequireApproval
	}

	team, err := m.store.CreateTeam(creatorID, spec)
	if err != nil {
		return nil, err
	}

	m.audit.Record("Teams", "Create", fmt.Sprintf("team %q created", team.Name), creatorID, team.ID, nil)
	return team, nil
}

// GetTeam returns a team snapshot with members and outstanding invites.
func (m *MembershipService) GetTeam(teamID uint) (*models.Team, error) {
	return m.store.GetTeam(teamID)
}

// InviteMember invites a user (referenced by id or email) to the team.
func (m *MembershipService) InviteMember(teamID, inviterID uint, targetRef string) (*models.TeamInvite, error) {
	if targetRef == "" {
		return nil, errs.Validation("target user reference is required")
	}

	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if team.Status != models.TeamStatusActive {
		return nil, errs.InvalidState("team %d is archived", teamID)
	}
	if !IsOwnerOrAdmin(team, inviterID) {
		return nil, errs.Forbidden("only owners and admins may invite members")
	}

	target, err := m.directory.Resolve(targetRef)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, errs.NotFound("user")
	}

	if IsMember(team, target.UserID) {
		return nil, errs.Conflict("user %d is already a member of team %d", target.UserID, teamID)
	}
	if HasPendingInvite(team, target.UserID) {
		return nil, errs.Conflict("user %d already has an outstanding invite to team %d", target.UserID, teamID)
	}
	if len(team.Members) >= team.MaxMembers {
		return nil, errs.CapacityExceeded(teamID)
	}

	// Snapshot checks above fail fast; the insert re-validates atomically.
	if _, err := m.store.ConditionalAddInvite(teamID, target.UserID, inviterID); err != nil {
		return nil, err
	}

	invite, err := m.store.GetInvite(teamID, target.UserID)
	if err != nil {
		return nil, err
	}

	m.audit.Record("Invites", "Create",
		fmt.Sprintf("user %d invited to team %q", target.UserID, team.Name), inviterID, teamID, nil)
	m.notify(target.UserID, EventInviteCreated, map[string]interface{}{
		"team_id":    teamID,
		"team_name":  team.Name,
		"invited_by": inviterID,
		"token":      invite.Token,
	})
	return invite, nil
}

// AcceptInvite turns an outstanding invite into membership. The guarded
// member insert runs first; the invite row is only removed after membership
// is committed, so a capacity failure leaves the invite in place.
func (m *MembershipService) AcceptInvite(teamID, userID uint) (*models.Team, error) {
	invite, err := m.store.GetInvite(teamID, userID)
	if err != nil {
		return nil, err
	}

	if err := m.store.ConditionalAddMember(teamID, userID, models.RoleMember); err != nil {
		return nil, err
	}
	if err := m.store.ConditionalRemoveInvite(teamID, userID); err != nil && !errs.IsNotFound(err) {
		logger.Warnf("[Membership] invite cleanup failed for team %d user %d: %v", teamID, userID, err)
	}

	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}

	m.audit.Record("Invites", "Accept",
		fmt.Sprintf("user %d joined team %q via invite", userID, team.Name), userID, teamID, nil)
	m.notify(invite.InvitedBy, EventInviteAccepted, map[string]interface{}{
		"team_id":   teamID,
		"team_name": team.Name,
		"user_id":   userID,
	})
	return team, nil
}

// DeclineInvite removes an outstanding invite at the target user's request.
func (m *MembershipService) DeclineInvite(teamID, userID uint) error {
	invite, err := m.store.GetInvite(teamID, userID)
	if err != nil {
		return err
	}
	if err := m.store.ConditionalRemoveInvite(teamID, userID); err != nil {
		return err
	}

	m.audit.Record("Invites", "Decline",
		fmt.Sprintf("user %d declined invite to team %d", userID, teamID), userID, teamID, nil)
	m.notify(invite.InvitedBy, EventInviteDeclined, map[string]interface{}{
		"team_id": teamID,
		"user_id": userID,
	})
	return nil
}

// RevokeInvite withdraws an invite on behalf of the team.
func (m *MembershipService) RevokeInvite(teamID, requesterID, targetID uint) error {
	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return err
	}
	if !IsOwnerOrAdmin(team, requesterID) {
		return errs.Forbidden("only owners and admins may revoke invites")
	}
	if err := m.store.ConditionalRemoveInvite(teamID, targetID); err != nil {
		return err
	}

	m.audit.Record("Invites", "Revoke",
		fmt.Sprintf("invite for user %d to team %q revoked", targetID, team.Name), requesterID, teamID, nil)
	m.notify(targetID, EventInviteRevoked, map[string]interface{}{
		"team_id":   teamID,
		"team_name": team.Name,
	})
	return nil
}

// CreateJoinRequest files a request to join a public team. When the team does
// not require approval, the request is approved immediately through the same
// guarded path an owner approval takes.
func (m *MembershipService) CreateJoinRequest(teamID, userID uint, message string) (*models.JoinRequest, error) {
	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if team.Status != models.TeamStatusActive {
		return nil, errs.InvalidState("team %d is archived", teamID)
	}
	if !team.IsPublic || !team.AllowJoinRequests {
		return nil, errs.Forbidden("team %d does not accept join requests", teamID)
	}
	if IsMember(team, userID) {
		return nil, errs.Conflict("user %d is already a member of team %d", userID, teamID)
	}
	if len(team.Members) >= team.MaxMembers {
		return nil, errs.CapacityExceeded(teamID)
	}

	req, err := m.store.CreateJoinRequest(teamID, userID, message)
	if err != nil {
		return nil, err
	}

	m.audit.Record("JoinRequests", "Create",
		fmt.Sprintf("user %d requested to join team %q", userID, team.Name), userID, teamID, nil)

	if !team.RequireApproval {
		// Open team: grant membership immediately, keeping the request record
		// as the audit trail. A concurrent fill-up leaves the request pending.
		if err := m.store.ConditionalAddMember(teamID, userID, models.RoleMember); err == nil {
			if terr := m.store.TransitionJoinRequest(req.ID, models.JoinRequestApproved, userID); terr != nil {
				logger.Warnf("[Membership] auto-approve transition failed for request %d: %v", req.ID, terr)
			}
			return m.store.GetJoinRequest(req.ID)
		} else if !errs.IsCapacityExceeded(err) && !errs.IsConflict(err) {
			return nil, err
		}
	}

	for i := range team.Members {
		member := &team.Members[i]
		if member.Role == models.RoleOwner || member.Role == models.RoleAdmin {
			m.notify(member.UserID, EventJoinRequestCreated, map[string]interface{}{
				"team_id":    teamID,
				"team_name":  team.Name,
				"user_id":    userID,
				"request_id": req.PublicID,
				"message":    message,
			})
		}
	}
	return req, nil
}

// RespondToJoinRequest approves or rejects a pending request. On approval the
// guarded member insert is attempted first and the status transition commits
// only after it succeeds; a capacity failure surfaces to the approver and the
// request stays pending so it can be retried or rejected.
func (m *MembershipService) RespondToJoinRequest(requestID, approverID uint, accept bool) (*models.JoinRequest, error) {
	req, err := m.store.GetJoinRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, errs.InvalidState("join request %d is already %s", requestID, req.Status)
	}

	team, err := m.store.GetTeam(req.TeamID)
	if err != nil {
		return nil, err
	}
	if team.Status != models.TeamStatusActive {
		return nil, errs.InvalidState("team %d is archived", req.TeamID)
	}
	if !IsOwnerOrAdmin(team, approverID) {
		return nil, errs.Forbidden("only owners and admins may respond to join requests")
	}

	event := EventJoinRequestRejected
	if accept {
		if err := m.store.ConditionalAddMember(req.TeamID, req.UserID, models.RoleMember); err != nil {
			return nil, err
		}
		event = EventJoinRequestApproved
	}

	to := models.JoinRequestRejected
	if accept {
		to = models.JoinRequestApproved
	}
	if err := m.store.TransitionJoinRequest(requestID, to, approverID); err != nil {
		// Lost a race with cancel/another approver after membership was
		// granted; membership stands, report the transition failure.
		return nil, err
	}

	updated, err := m.store.GetJoinRequest(requestID)
	if err != nil {
		return nil, err
	}

	m.audit.Record("JoinRequests", string(to),
		fmt.Sprintf("join request %d for team %q %s", requestID, team.Name, to), approverID, req.TeamID, nil)
	m.notify(req.UserID, event, map[string]interface{}{
		"team_id":    req.TeamID,
		"team_name":  team.Name,
		"request_id": req.PublicID,
	})
	return updated, nil
}

// CancelJoinRequest lets the requester withdraw a pending request.
func (m *MembershipService) CancelJoinRequest(requestID, requesterID uint) (*models.JoinRequest, error) {
	req, err := m.store.GetJoinRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != requesterID {
		return nil, errs.Forbidden("only the requester may cancel a join request")
	}
	if err := m.store.TransitionJoinRequest(requestID, models.JoinRequestCancelled, requesterID); err != nil {
		return nil, err
	}

	m.audit.Record("JoinRequests", "Cancel",
		fmt.Sprintf("join request %d cancelled by requester", requestID), requesterID, req.TeamID, nil)
	return m.store.GetJoinRequest(requestID)
}

// RemoveMember removes a member. Self-removal is always permitted subject to
// the last-owner guard; removing another user requires management capability.
func (m *MembershipService) RemoveMember(teamID, removerID, targetID uint) error {
	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return err
	}
	if team.Status != models.TeamStatusActive {
		return errs.InvalidState("team %d is archived", teamID)
	}
	if removerID != targetID && !IsOwnerOrAdmin(team, removerID) {
		return errs.Forbidden("only owners and admins may remove other members")
	}

	role, ok := RoleOf(team, targetID)
	if !ok {
		return errs.NotFound("member")
	}
	if role == models.RoleOwner && RemainingOwnerCount(team, targetID) == 0 {
		return errs.InvalidState("team must have at least one owner; transfer ownership first")
	}

	// The delete re-checks the owner guard atomically.
	if err := m.store.ConditionalRemoveMember(teamID, targetID); err != nil {
		return err
	}

	m.audit.Record("Members", "Remove",
		fmt.Sprintf("user %d removed from team %q", targetID, team.Name), removerID, teamID, nil)
	if removerID != targetID {
		m.notify(targetID, EventMemberRemoved, map[string]interface{}{
			"team_id":   teamID,
			"team_name": team.Name,
		})
	}
	return nil
}

// UpdateMemberRole changes a member's role. Granting or taking away the owner
// role requires ownership; admin/member moves require management capability.
func (m *MembershipService) UpdateMemberRole(teamID, updaterID, targetID uint, newRole models.TeamRole) error {
	if !models.ValidRole(newRole) {
		return errs.Validation("invalid role %q", newRole)
	}

	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return err
	}
	if team.Status != models.TeamStatusActive {
		return errs.InvalidState("team %d is archived", teamID)
	}

	current, ok := RoleOf(team, targetID)
	if !ok {
		return errs.NotFound("member")
	}
	if current == newRole {
		return nil
	}

	ownerInvolved := current == models.RoleOwner || newRole == models.RoleOwner
	if ownerInvolved && !IsOwner(team, updaterID) {
		return errs.Forbidden("only owners may transfer or revoke ownership")
	}
	if !ownerInvolved && !IsOwnerOrAdmin(team, updaterID) {
		return errs.Forbidden("only owners and admins may change member roles")
	}
	if current == models.RoleOwner && RemainingOwnerCount(team, targetID) == 0 {
		return errs.InvalidState("team must have at least one owner; transfer ownership first")
	}

	if err := m.store.ConditionalUpdateRole(teamID, targetID, newRole); err != nil {
		return err
	}

	m.audit.Record("Members", "RoleChange",
		fmt.Sprintf("user %d role changed %s -> %s in team %q", targetID, current, newRole, team.Name),
		updaterID, teamID, nil)
	m.notify(targetID, EventMemberRoleChanged, map[string]interface{}{
		"team_id":   teamID,
		"team_name": team.Name,
		"role":      newRole,
	})
	return nil
}

// UpdateTeamSettings applies a settings patch.
func (m *MembershipService) UpdateTeamSettings(teamID, updaterID uint, req *UpdateSettingsRequest) (*models.Team, error) {
	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if team.Status != models.TeamStatusActive {
		return nil, errs.InvalidState("team %d is archived", teamID)
	}
	if !IsOwnerOrAdmin(team, updaterID) {
		return nil, errs.Forbidden("only owners and admins may update team settings")
	}
	if req.Name != nil && *req.Name == "" {
		return nil, errs.Validation("team name cannot be empty")
	}
	if req.MaxMembers != nil {
		if *req.MaxMembers < 1 {
			return nil, errs.Validation("max_members must be at least 1")
		}
		if *req.MaxMembers < len(team.Members) {
			return nil, errs.Validation("max_members cannot be set below the current member count")
		}
	}

	patch := &store.SettingsPatch{
		Name:              req.Name,
		Description:       req.Description,
		MaxMembers:        req.MaxMembers,
		IsPublic:          req.IsPublic,
		AllowJoinRequests: req.AllowJoinRequests,
		RequireApproval:   req.RequireApproval,
	}
	if err := m.store.UpdateSettings(teamID, patch); err != nil {
		return nil, err
	}

	m.audit.Record("Teams", "UpdateSettings",
		fmt.Sprintf("settings updated for team %q", team.Name), updaterID, teamID, nil)
	return m.store.GetTeam(teamID)
}

// ArchiveTeam moves the team to its terminal state. Owner only.
func (m *MembershipService) ArchiveTeam(teamID, requesterID uint) error {
	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return err
	}
	if !IsOwner(team, requesterID) {
		return errs.Forbidden("only the owner may archive a team")
	}
	if err := m.store.ArchiveTeam(teamID); err != nil {
		return err
	}

	m.audit.Record("Teams", "Archive",
		fmt.Sprintf("team %q archived", team.Name), requesterID, teamID, nil)
	for i := range team.Members {
		if team.Members[i].UserID == requesterID {
			continue
		}
		m.notify(team.Members[i].UserID, EventTeamArchived, map[string]interface{}{
			"team_id":   teamID,
			"team_name": team.Name,
		})
	}
	return nil
}

// ListJoinRequests returns a team's join requests, newest first. Management
// capability required; optional status filter.
func (m *MembershipService) ListJoinRequests(teamID, requesterID uint, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	team, err := m.store.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if !IsOwnerOrAdmin(team, requesterID) {
		return nil, errs.Forbidden("only owners and admins may list join requests")
	}

	query := m.store.DB().Where("team_id = ?", teamID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var requests []models.JoinRequest
	if err := query.Preload("User").Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// ListMyJoinRequests returns the requests a user has filed, newest first.
func (m *MembershipService) ListMyJoinRequests(userID uint) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	err := m.store.DB().Where("user_id = ?", userID).
		Preload("Team").Order("created_at DESC").Find(&requests).Error
	return requests, err
}

// ListMyInvites returns the outstanding invites addressed to a user.
func (m *MembershipService) ListMyInvites(userID uint) ([]models.TeamInvite, error) {
	var invites []models.TeamInvite
	err := m.store.DB().Where("user_id = ?", userID).
		Order("created_at DESC").Find(&invites).Error
	return invites, err
}

// ListTeams returns a paginated team listing, optionally filtered by name and
// restricted to public teams.
type TeamListRequest struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	Name       string `form:"name"`
	PublicOnly bool   `form:"public_only"`
}

type TeamListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Team `json:"items"`
}

func (m *MembershipService) ListTeams(req *TeamListRequest) (*TeamListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	query := m.store.DB().Model(&models.Team{})
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.PublicOnly {
		query = query.Where("is_public = ?", true)
	}

	var total int64
	query.Count(&total)

	var teams []models.Team
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Members").Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&teams).Error; err != nil {
		return nil, err
	}

	return &TeamListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    teams,
	}, nil
}

// notify delivers a membership event without affecting the operation result.
func (m *MembershipService) notify(userID uint, eventType string, payload map[string]interface{}) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(userID, eventType, payload); err != nil {
		logger.Warnf("[Membership] notification %s to user %d failed: %v", eventType, userID, err)
	}
}
