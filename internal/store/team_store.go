package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/teamforge/teamforge/internal/errs"
	"github.com/teamforge/teamforge/internal/models"
	"gorm.io/gorm"
)

// TeamStore is the persistence layer for teams and join requests. Every
// mutating primitive is a single guarded SQL statement (INSERT ... SELECT or
// conditional UPDATE/DELETE) whose affected-row count decides the outcome, so
// two concurrent callers can never both commit a write that jointly violates
// the membership invariants. There is no read-modify-write here and callers
// must not add any.
type TeamStore struct {
	db *gorm.DB
}

func NewTeamStore(db *gorm.DB) *TeamStore {
	return &TeamStore{db: db}
}

// DB exposes the underlying handle for read-only listing queries.
func (s *TeamStore) DB() *gorm.DB {
	return s.db
}

// TeamSpec is the input to CreateTeam.
type TeamSpec struct {
	Name              string
	Description       string
	MaxMembers        int
	IsPublic          bool
	AllowJoinRequests bool
	RequireApproval   bool
}

// CreateTeam inserts the team and its creator as sole owner in one
// transaction.
func (s *TeamStore) CreateTeam(creatorID uint, spec *TeamSpec) (*models.Team, error) {
	now := time.Now()
	team := models.Team{
		Name:              spec.Name,
		Description:       spec.Description,
		MaxMembers:        spec.MaxMembers,
		IsPublic:          spec.IsPublic,
		AllowJoinRequests: spec.AllowJoinRequests,
		RequireApproval:   spec.RequireApproval,
		Status:            models.TeamStatusActive,
		CreatedBy:         creatorID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		owner := models.TeamMember{
			TeamID:   team.ID,
			UserID:   creatorID,
			Role:     models.RoleOwner,
			JoinedAt: now,
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetTeam(team.ID)
}

// GetTeam loads a team with its members and outstanding invites.
func (s *TeamStore) GetTeam(id uint) (*models.Team, error) {
	var team models.Team
	err := s.db.Preload("Members").Preload("Members.User").Preload("Invites").
		First(&team, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("team")
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// ConditionalAddMember inserts a membership row only if the team is active,
// the user is not already a member, and the team is below capacity. The three
// conditions are evaluated inside the insert itself.
//
// Outstanding invites do not reserve capacity: the ceiling is enforced at the
// moment membership is granted, so late acceptors of a batch of invites fail
// here rather than overfilling the team.
func (s *TeamStore) ConditionalAddMember(teamID, userID uint, role models.TeamRole) error {
	now := time.Now()
	res := s.db.Exec(`
		INSERT INTO team_members (team_id, user_id, role, joined_at, created_at, updated_at)
		SELECT teams.id, ?, ?, ?, ?, ?
		FROM teams
		WHERE teams.id = ?
		  AND teams.status = ?
		  AND teams.max_members > (SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = teams.id)
		  AND NOT EXISTS (SELECT 1 FROM team_members tm WHERE tm.team_id = teams.id AND tm.user_id = ?)`,
		userID, role, now, now, now,
		teamID, models.TeamStatusActive, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.classifyAddMemberFailure(teamID, userID)
}

// classifyAddMemberFailure inspects current state to pick the right typed
// error after a guarded insert matched no row. The classification read is
// advisory; the insert itself already made the atomic decision.
func (s *TeamStore) classifyAddMemberFailure(teamID, userID uint) error {
	var team models.Team
	if err := s.db.Select("id", "status", "max_members").First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("team")
		}
		return err
	}
	if team.Status != models.TeamStatusActive {
		return errs.InvalidState("team %d is archived", teamID)
	}

	var isMember int64
	s.db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).Count(&isMember)
	if isMember > 0 {
		return errs.Conflict("user %d is already a member of team %d", userID, teamID)
	}
	return errs.CapacityExceeded(teamID)
}

// ConditionalRemoveMember deletes a membership row unless doing so would
// leave an active team with no owner. The owner-count guard is folded into
// the delete (via a derived table, so it also runs on MySQL).
func (s *TeamStore) ConditionalRemoveMember(teamID, userID uint) error {
	res := s.db.Exec(`
		DELETE FROM team_members
		WHERE team_id = ? AND user_id = ?
		  AND EXISTS (SELECT 1 FROM teams WHERE teams.id = ? AND teams.status = ?)
		  AND (role <> ?
		       OR 1 < (SELECT cnt FROM (SELECT COUNT(*) AS cnt FROM team_members o
		                                WHERE o.team_id = ? AND o.role = ?) AS owners))`,
		teamID, userID, teamID, models.TeamStatusActive,
		models.RoleOwner, teamID, models.RoleOwner)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.classifyRemoveMemberFailure(teamID, userID)
}

func (s *TeamStore) classifyRemoveMemberFailure(teamID, userID uint) error {
	var team models.Team
	if err := s.db.Select("id", "status").First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("team")
		}
		return err
	}
	if team.Status != models.TeamStatusActive {
		return errs.InvalidState("team %d is archived", teamID)
	}

	var member models.TeamMember
	err := s.db.Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("member")
	}
	if err != nil {
		return err
	}
	return errs.InvalidState("team must have at least one owner; transfer ownership first")
}

// ConditionalUpdateRole changes a member's role. Demoting an owner is guarded
// the same way removal is: the last owner cannot lose the role.
func (s *TeamStore) ConditionalUpdateRole(teamID, userID uint, role models.TeamRole) error {
	res := s.db.Exec(`
		UPDATE team_members
		SET role = ?, updated_at = ?
		WHERE team_id = ? AND user_id = ?
		  AND EXISTS (SELECT 1 FROM teams WHERE teams.id = ? AND teams.status = ?)
		  AND (? = ?
		       OR role <> ?
		       OR 1 < (SELECT cnt FROM (SELECT COUNT(*) AS cnt FROM team_members o
		                                WHERE o.team_id = ? AND o.role = ?) AS owners))`,
		role, time.Now(),
		teamID, userID, teamID, models.TeamStatusActive,
		role, models.RoleOwner,
		models.RoleOwner, teamID, models.RoleOwner)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.classifyRemoveMemberFailure(teamID, userID)
}

// ConditionalAddInvite records an outstanding invite. Guarded against
// archived teams, existing members, duplicate invites, and full teams.
// Returns the generated invite token on success.
func (s *TeamStore) ConditionalAddInvite(teamID, userID, invitedBy uint) (string, error) {
	token := uuid.NewString()
	res := s.db.Exec(`
		INSERT INTO team_invites (team_id, user_id, invited_by, token, created_at)
		SELECT teams.id, ?, ?, ?, ?
		FROM teams
		WHERE teams.id = ?
		  AND teams.status = ?
		  AND teams.max_members > (SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = teams.id)
		  AND NOT EXISTS (SELECT 1 FROM team_members tm WHERE tm.team_id = teams.id AND tm.user_id = ?)
		  AND NOT EXISTS (SELECT 1 FROM team_invites ti WHERE ti.team_id = teams.id AND ti.user_id = ?)`,
		userID, invitedBy, token, time.Now(),
		teamID, models.TeamStatusActive, userID, userID)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 1 {
		return token, nil
	}
	return "", s.classifyAddInviteFailure(teamID, userID)
}

func (s *TeamStore) classifyAddInviteFailure(teamID, userID uint) error {
	var team models.Team
	if err := s.db.Select("id", "status", "max_members").First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("team")
		}
		return err
	}
	if team.Status != models.TeamStatusActive {
		return errs.InvalidState("team %d is archived", teamID)
	}

	var n int64
	s.db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).Count(&n)
	if n > 0 {
		return errs.Conflict("user %d is already a member of team %d", userID, teamID)
	}
	s.db.Model(&models.TeamInvite{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).Count(&n)
	if n > 0 {
		return errs.Conflict("user %d already has an outstanding invite to team %d", userID, teamID)
	}
	return errs.CapacityExceeded(teamID)
}

// ConditionalRemoveInvite deletes an outstanding invite.
func (s *TeamStore) ConditionalRemoveInvite(teamID, userID uint) error {
	res := s.db.Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamInvite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("invite")
	}
	return nil
}

// GetInvite loads an outstanding invite for a (team, user) pair.
func (s *TeamStore) GetInvite(teamID, userID uint) (*models.TeamInvite, error) {
	var invite models.TeamInvite
	err := s.db.Where("team_id = ? AND user_id = ?", teamID, userID).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("invite")
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// CreateJoinRequest inserts a pending request only if the team is active,
// public, accepting requests, below capacity, the user is not a member, and
// no pending request for the pair exists. Uniqueness of the pending pair is
// enforced by the guarded insert rather than a unique index, because terminal
// requests for the same pair accumulate over time.
func (s *TeamStore) CreateJoinRequest(teamID, userID uint, message string) (*models.JoinRequest, error) {
	publicID := uuid.NewString()
	now := time.Now()
	res := s.db.Exec(`
		INSERT INTO join_requests (public_id, team_id, user_id, message, status, created_at, updated_at)
		SELECT ?, teams.id, ?, ?, ?, ?, ?
		FROM teams
		WHERE teams.id = ?
		  AND teams.status = ?
		  AND teams.is_public = ?
		  AND teams.allow_join_requests = ?
		  AND teams.max_members > (SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = teams.id)
		  AND NOT EXISTS (SELECT 1 FROM team_members tm WHERE tm.team_id = teams.id AND tm.user_id = ?)
		  AND NOT EXISTS (SELECT 1 FROM join_requests jr
		                  WHERE jr.team_id = teams.id AND jr.user_id = ? AND jr.status = ?)`,
		publicID, userID, message, models.JoinRequestPending, now, now,
		teamID, models.TeamStatusActive, true, true,
		userID, userID, models.JoinRequestPending)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.classifyCreateRequestFailure(teamID, userID)
	}

	var req models.JoinRequest
	if err := s.db.Where("public_id = ?", publicID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *TeamStore) classifyCreateRequestFailure(teamID, userID uint) error {
	var team models.Team
	if err := s.db.Select("id", "status", "is_public", "allow_join_requests", "max_members").
		First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("team")
		}
		return err
	}
	if team.Status != models.TeamStatusActive {
		return errs.InvalidState("team %d is archived", teamID)
	}
	if !team.IsPublic || !team.AllowJoinRequests {
		return errs.Forbidden("team %d does not accept join requests", teamID)
	}

	var n int64
	s.db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).Count(&n)
	if n > 0 {
		return errs.Conflict("user %d is already a member of team %d", userID, teamID)
	}
	s.db.Model(&models.JoinRequest{}).
		Where("team_id = ? AND user_id = ? AND status = ?", teamID, userID, models.JoinRequestPending).
		Count(&n)
	if n > 0 {
		return errs.Conflict("a pending join request already exists for user %d on team %d", userID, teamID)
	}
	return errs.CapacityExceeded(teamID)
}

// GetJoinRequest loads a request by numeric id.
func (s *TeamStore) GetJoinRequest(id uint) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := s.db.First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("join request")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetJoinRequestByPublicID loads a request by its shareable identifier.
func (s *TeamStore) GetJoinRequestByPublicID(publicID string) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := s.db.Where("public_id = ?", publicID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("join request")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// TransitionJoinRequest moves a request out of pending via compare-and-set.
// A request already in a terminal state fails InvalidState regardless of the
// target status; terminal requests are immutable.
func (s *TeamStore) TransitionJoinRequest(requestID uint, to models.JoinRequestStatus, handledBy uint) error {
	now := time.Now()
	res := s.db.Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", requestID, models.JoinRequestPending).
		Updates(map[string]interface{}{
			"status":     to,
			"handled_by": handledBy,
			"handled_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var req models.JoinRequest
	err := s.db.Select("id", "status").First(&req, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("join request")
	}
	if err != nil {
		return err
	}
	return errs.InvalidState("join request %d is already %s", requestID, req.Status)
}

// SettingsPatch carries partial team settings updates. Nil fields are left
// untouched.
type SettingsPatch struct {
	Name              *string
	Description       *string
	MaxMembers        *int
	IsPublic          *bool
	AllowJoinRequests *bool
	RequireApproval   *bool
}

// UpdateSettings applies a patch, conditional on the team being active and,
// when max_members shrinks, on it staying at or above the current member
// count (checked inside the update statement).
func (s *TeamStore) UpdateSettings(teamID uint, patch *SettingsPatch) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.MaxMembers != nil {
		updates["max_members"] = *patch.MaxMembers
	}
	if patch.IsPublic != nil {
		updates["is_public"] = *patch.IsPublic
	}
	if patch.AllowJoinRequests != nil {
		updates["allow_join_requests"] = *patch.AllowJoinRequests
	}
	if patch.RequireApproval != nil {
		updates["require_approval"] = *patch.RequireApproval
	}

	query := s.db.Model(&models.Team{}).
		Where("id = ? AND status = ?", teamID, models.TeamStatusActive)
	if patch.MaxMembers != nil {
		query = query.Where("? >= (SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = teams.id)",
			*patch.MaxMembers)
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var team models.Team
	err := s.db.Select("id", "status").First(&team, teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("team")
	}
	if err != nil {
		return err
	}
	if team.Status != models.TeamStatusActive {
		return errs.InvalidState("team %d is archived", teamID)
	}
	return errs.Validation("max_members cannot be set below the current member count")
}

// ArchiveTeam moves an active team to the terminal archived state.
func (s *TeamStore) ArchiveTeam(teamID uint) error {
	res := s.db.Model(&models.Team{}).
		Where("id = ? AND status = ?", teamID, models.TeamStatusActive).
		Updates(map[string]interface{}{
			"status":     models.TeamStatusArchived,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var team models.Team
	err := s.db.Select("id", "status").First(&team, teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("team")
	}
	if err != nil {
		return err
	}
	return errs.InvalidState("team %d is already archived", teamID)
}

// DeleteInvitesBefore removes pending invites created before cutoff.
func (s *TeamStore) DeleteInvitesBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.TeamInvite{})
	return res.RowsAffected, res.Error
}

// ExpireRequestsBefore cancels pending join requests created before cutoff.
// Uses the same CAS predicate as user cancellation, with handled_by left
// empty to mark a system decision.
func (s *TeamStore) ExpireRequestsBefore(cutoff time.Time) (int64, error) {
	now := time.Now()
	res := s.db.Model(&models.JoinRequest{}).
		Where("status = ? AND created_at < ?", models.JoinRequestPending, cutoff).
		Updates(map[string]interface{}{
			"status":     models.JoinRequestCancelled,
			"handled_at": now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
