package store

import (
	"sync"
	"testing"
	"time"

	"github.com/teamforge/teamforge/internal/errs"
	"github.com/teamforge/teamforge/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupStore(t *testing.T) *TeamStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection serializes concurrent statements, which keeps the
	// in-memory database stable under the concurrency tests below.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{}, &models.Team{}, &models.TeamMember{},
		&models.TeamInvite{}, &models.JoinRequest{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewTeamStore(db)
}

func createTeam(t *testing.T, s *TeamStore, creatorID uint, maxMembers int) *models.Team {
	t.Helper()
	team, err := s.CreateTeam(creatorID, &TeamSpec{
		Name:              "test team",
		MaxMembers:        maxMembers,
		IsPublic:          true,
		AllowJoinRequests: true,
		RequireApproval:   true,
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	return team
}

func TestCreateTeam_CreatorIsSoleOwner(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 10)

	if len(team.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(team.Members))
	}
	if team.Members[0].UserID != 1 || team.Members[0].Role != models.RoleOwner {
		t.Errorf("expected user 1 as owner, got user %d role %s",
			team.Members[0].UserID, team.Members[0].Role)
	}
	if team.Status != models.TeamStatusActive {
		t.Errorf("expected active status, got %s", team.Status)
	}
}

func TestGetTeam_NotFound(t *testing.T) {
	s := setupStore(t)
	if _, err := s.GetTeam(999); !errs.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestConditionalAddMember(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 3)

	if err := s.ConditionalAddMember(team.ID, 2, models.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	// Duplicate membership
	if err := s.ConditionalAddMember(team.ID, 2, models.RoleMember); !errs.IsConflict(err) {
		t.Errorf("expected Conflict for duplicate member, got %v", err)
	}

	// Fill to capacity, then one more
	if err := s.ConditionalAddMember(team.ID, 3, models.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	if err := s.ConditionalAddMember(team.ID, 4, models.RoleMember); !errs.IsCapacityExceeded(err) {
		t.Errorf("expected CapacityExceeded, got %v", err)
	}

	// Missing team
	if err := s.ConditionalAddMember(999, 5, models.RoleMember); !errs.IsNotFound(err) {
		t.Errorf("expected NotFound for missing team, got %v", err)
	}
}

func TestConditionalAddMember_ArchivedTeam(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	if err := s.ArchiveTeam(team.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if err := s.ConditionalAddMember(team.ID, 2, models.RoleMember); !errs.IsInvalidState(err) {
		t.Errorf("expected InvalidState for archived team, got %v", err)
	}
}

func TestConditionalRemoveMember_LastOwnerGuard(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	// Sole owner cannot leave.
	if err := s.ConditionalRemoveMember(team.ID, 1); !errs.IsInvalidState(err) {
		t.Errorf("expected InvalidState removing sole owner, got %v", err)
	}

	// Second owner unblocks removal.
	if err := s.ConditionalAddMember(team.ID, 2, models.RoleOwner); err != nil {
		t.Fatalf("add owner failed: %v", err)
	}
	if err := s.ConditionalRemoveMember(team.ID, 1); err != nil {
		t.Fatalf("remove with co-owner failed: %v", err)
	}

	// Back to one owner: the guard applies again.
	if err := s.ConditionalRemoveMember(team.ID, 2); !errs.IsInvalidState(err) {
		t.Errorf("expected InvalidState removing last remaining owner, got %v", err)
	}
}

func TestConditionalRemoveMember_NonOwner(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	if err := s.ConditionalAddMember(team.ID, 2, models.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	if err := s.ConditionalRemoveMember(team.ID, 2); err != nil {
		t.Fatalf("remove member failed: %v", err)
	}
	if err := s.ConditionalRemoveMember(team.ID, 2); !errs.IsNotFound(err) {
		t.Errorf("expected NotFound for repeated removal, got %v", err)
	}
}

func TestConditionalUpdateRole(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	if err := s.ConditionalAddMember(team.ID, 2, models.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	// Promote member to admin.
	if err := s.ConditionalUpdateRole(team.ID, 2, models.RoleAdmin); err != nil {
		t.Fatalf("promote failed: %v", err)
	}

	// Demoting the sole owner is blocked.
	if err := s.ConditionalUpdateRole(team.ID, 1, models.RoleMember); !errs.IsInvalidState(err) {
		t.Errorf("expected InvalidState demoting sole owner, got %v", err)
	}

	// Ownership transfer: promote 2, then demote 1.
	if err := s.ConditionalUpdateRole(team.ID, 2, models.RoleOwner); err != nil {
		t.Fatalf("promote to owner failed: %v", err)
	}
	if err := s.ConditionalUpdateRole(team.ID, 1, models.RoleMember); err != nil {
		t.Fatalf("demote with co-owner failed: %v", err)
	}
}

func TestConditionalAddInvite(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	token, err := s.ConditionalAddInvite(team.ID, 2, 1)
	if err != nil {
		t.Fatalf("add invite failed: %v", err)
	}
	if token == "" {
		t.Error("expected non-empty invite token")
	}

	// One outstanding invite per pair.
	if _, err := s.ConditionalAddInvite(team.ID, 2, 1); !errs.IsConflict(err) {
		t.Errorf("expected Conflict for duplicate invite, got %v", err)
	}

	// Members cannot be invited.
	if err := s.ConditionalAddMember(team.ID, 3, models.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	if _, err := s.ConditionalAddInvite(team.ID, 3, 1); !errs.IsConflict(err) {
		t.Errorf("expected Conflict inviting a member, got %v", err)
	}

	invite, err := s.GetInvite(team.ID, 2)
	if err != nil {
		t.Fatalf("GetInvite failed: %v", err)
	}
	if invite.Token != token || invite.InvitedBy != 1 {
		t.Errorf("invite = %+v, expected token %q invited_by 1", invite, token)
	}
}

func TestConditionalAddInvite_FullTeam(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 1)

	if _, err := s.ConditionalAddInvite(team.ID, 2, 1); !errs.IsCapacityExceeded(err) {
		t.Errorf("expected CapacityExceeded inviting to full team, got %v", err)
	}
}

func TestConditionalRemoveInvite(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	if _, err := s.ConditionalAddInvite(team.ID, 2, 1); err != nil {
		t.Fatalf("add invite failed: %v", err)
	}
	if err := s.ConditionalRemoveInvite(team.ID, 2); err != nil {
		t.Fatalf("remove invite failed: %v", err)
	}
	if err := s.ConditionalRemoveInvite(team.ID, 2); !errs.IsNotFound(err) {
		t.Errorf("expected NotFound for repeated removal, got %v", err)
	}
}

func TestCreateJoinRequest(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	req, err := s.CreateJoinRequest(team.ID, 2, "let me in")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if req.Status != models.JoinRequestPending {
		t.Errorf("expected pending, got %s", req.Status)
	}
	if req.PublicID == "" {
		t.Error("expected non-empty public id")
	}

	// One pending request per pair.
	if _, err := s.CreateJoinRequest(team.ID, 2, "again"); !errs.IsConflict(err) {
		t.Errorf("expected Conflict for duplicate pending request, got %v", err)
	}

	// Members cannot request.
	if _, err := s.CreateJoinRequest(team.ID, 1, "hi"); !errs.IsConflict(err) {
		t.Errorf("expected Conflict for member request, got %v", err)
	}
}

func TestCreateJoinRequest_ClosedTeam(t *testing.T) {
	s := setupStore(t)

	private, err := s.CreateTeam(1, &TeamSpec{
		Name: "private", MaxMembers: 5,
		IsPublic: false, AllowJoinRequests: true, RequireApproval: true,
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if _, err := s.CreateJoinRequest(private.ID, 2, ""); !errs.IsForbidden(err) {
		t.Errorf("expected Forbidden for private team, got %v", err)
	}

	closed, err := s.CreateTeam(1, &TeamSpec{
		Name: "closed", MaxMembers: 5,
		IsPublic: true, AllowJoinRequests: false, RequireApproval: true,
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if _, err := s.CreateJoinRequest(closed.ID, 2, ""); !errs.IsForbidden(err) {
		t.Errorf("expected Forbidden when requests disabled, got %v", err)
	}
}

func TestCreateJoinRequest_FullTeam(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 1)

	if _, err := s.CreateJoinRequest(team.ID, 2, ""); !errs.IsCapacityExceeded(err) {
		t.Errorf("expected CapacityExceeded, got %v", err)
	}
}

func TestCreateJoinRequest_AfterTerminal(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	req, err := s.CreateJoinRequest(team.ID, 2, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if err := s.TransitionJoinRequest(req.ID, models.JoinRequestRejected, 1); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	// A rejected request does not block a new one.
	if _, err := s.CreateJoinRequest(team.ID, 2, "second try"); err != nil {
		t.Errorf("expected new request after rejection, got %v", err)
	}
}

func TestTransitionJoinRequest(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	req, err := s.CreateJoinRequest(team.ID, 2, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	if err := s.TransitionJoinRequest(req.ID, models.JoinRequestApproved, 1); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	updated, err := s.GetJoinRequest(req.ID)
	if err != nil {
		t.Fatalf("GetJoinRequest failed: %v", err)
	}
	if updated.Status != models.JoinRequestApproved {
		t.Errorf("expected approved, got %s", updated.Status)
	}
	if updated.HandledBy == nil || *updated.HandledBy != 1 {
		t.Errorf("expected handled_by 1, got %v", updated.HandledBy)
	}
	if updated.HandledAt == nil {
		t.Error("expected handled_at to be set")
	}

	// Terminal requests are immutable.
	if err := s.TransitionJoinRequest(req.ID, models.JoinRequestCancelled, 2); !errs.IsInvalidState(err) {
		t.Errorf("expected InvalidState for terminal request, got %v", err)
	}

	if err := s.TransitionJoinRequest(999, models.JoinRequestApproved, 1); !errs.IsNotFound(err) {
		t.Errorf("expected NotFound for missing request, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	name := "renamed"
	isPublic := false
	if err := s.UpdateSettings(team.ID, &SettingsPatch{Name: &name, IsPublic: &isPublic}); err != nil {
		t.Fatalf("update settings failed: %v", err)
	}

	updated, err := s.GetTeam(team.ID)
	if err != nil {
		t.Fatalf("GetTeam failed: %v", err)
	}
	if updated.Name != "renamed" || updated.IsPublic {
		t.Errorf("settings not applied: name=%q is_public=%v", updated.Name, updated.IsPublic)
	}
}

func TestUpdateSettings_ShrinkBelowMemberCount(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	for _, uid := range []uint{2, 3} {
		if err := s.ConditionalAddMember(team.ID, uid, models.RoleMember); err != nil {
			t.Fatalf("add member failed: %v", err)
		}
	}

	two := 2
	if err := s.UpdateSettings(team.ID, &SettingsPatch{MaxMembers: &two}); !errs.IsValidation(err) {
		t.Errorf("expected Validation shrinking below member count, got %v", err)
	}

	three := 3
	if err := s.UpdateSettings(team.ID, &SettingsPatch{MaxMembers: &three}); err != nil {
		t.Errorf("expected shrink to member count to succeed, got %v", err)
	}
}

func TestArchiveTeam(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	if err := s.ArchiveTeam(team.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if err := s.ArchiveTeam(team.ID); !errs.IsInvalidState(err) {
		t.Errorf("expected InvalidState for double archive, got %v", err)
	}
	if err := s.ArchiveTeam(999); !errs.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestConcurrentAddMember_CapacityHasOneWinner(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 2) // owner + one free slot

	const contenders = 8
	var wg sync.WaitGroup
	results := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			results <- s.ConditionalAddMember(team.ID, userID, models.RoleMember)
		}(uint(100 + i))
	}
	wg.Wait()
	close(results)

	var wins, capacityFails int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errs.IsCapacityExceeded(err):
			capacityFails++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
	if capacityFails != contenders-1 {
		t.Errorf("expected %d capacity failures, got %d", contenders-1, capacityFails)
	}

	final, err := s.GetTeam(team.ID)
	if err != nil {
		t.Fatalf("GetTeam failed: %v", err)
	}
	if len(final.Members) != 2 {
		t.Errorf("expected 2 members after the race, got %d", len(final.Members))
	}
}

func TestConcurrentTransition_OneWinner(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 5)

	req, err := s.CreateJoinRequest(team.ID, 2, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	targets := []models.JoinRequestStatus{
		models.JoinRequestApproved,
		models.JoinRequestRejected,
		models.JoinRequestCancelled,
		models.JoinRequestApproved,
	}

	var wg sync.WaitGroup
	results := make(chan error, len(targets))
	for _, to := range targets {
		wg.Add(1)
		go func(to models.JoinRequestStatus) {
			defer wg.Done()
			results <- s.TransitionJoinRequest(req.ID, to, 1)
		}(to)
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errs.IsInvalidState(err):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winning transition, got %d", wins)
	}

	final, err := s.GetJoinRequest(req.ID)
	if err != nil {
		t.Fatalf("GetJoinRequest failed: %v", err)
	}
	if !final.Status.Terminal() {
		t.Errorf("expected terminal status, got %s", final.Status)
	}
}

func TestExpirySweepHelpers(t *testing.T) {
	s := setupStore(t)
	team := createTeam(t, s, 1, 10)

	if _, err := s.ConditionalAddInvite(team.ID, 2, 1); err != nil {
		t.Fatalf("add invite failed: %v", err)
	}
	if _, err := s.CreateJoinRequest(team.ID, 3, ""); err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	// Cutoff in the past touches nothing.
	past := time.Now().Add(-time.Hour)
	if n, err := s.DeleteInvitesBefore(past); err != nil || n != 0 {
		t.Errorf("DeleteInvitesBefore(past) = (%d, %v), expected (0, nil)", n, err)
	}
	if n, err := s.ExpireRequestsBefore(past); err != nil || n != 0 {
		t.Errorf("ExpireRequestsBefore(past) = (%d, %v), expected (0, nil)", n, err)
	}

	// Cutoff in the future sweeps both.
	future := time.Now().Add(time.Hour)
	if n, err := s.DeleteInvitesBefore(future); err != nil || n != 1 {
		t.Errorf("DeleteInvitesBefore(future) = (%d, %v), expected (1, nil)", n, err)
	}
	if n, err := s.ExpireRequestsBefore(future); err != nil || n != 1 {
		t.Errorf("ExpireRequestsBefore(future) = (%d, %v), expected (1, nil)", n, err)
	}

	var req models.JoinRequest
	if err := s.db.Where("team_id = ? AND user_id = ?", team.ID, 3).First(&req).Error; err != nil {
		t.Fatalf("load swept request: %v", err)
	}
	if req.Status != models.JoinRequestCancelled {
		t.Errorf("expected swept request cancelled, got %s", req.Status)
	}
}
