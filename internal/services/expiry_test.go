package services

import (
	"testing"
	"time"

	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupExpiry(t *testing.T, cfg *config.MembershipConfig) (*ExpiryService, *store.TeamStore, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Team{}, &models.TeamMember{},
		&models.TeamInvite{}, &models.JoinRequest{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	st := store.NewTeamStore(db)
	return NewExpiryService(st, cfg), st, db
}

func TestSweep_RemovesStaleOffers(t *testing.T) {
	svc, st, db := setupExpiry(t, &config.MembershipConfig{
		InviteTTLDays:  14,
		RequestTTLDays: 30,
	})

	team, err := st.CreateTeam(1, &store.TeamSpec{
		Name: "core", MaxMembers: 10,
		IsPublic: true, AllowJoinRequests: true, RequireApproval: true,
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}

	if _, err := st.ConditionalAddInvite(team.ID, 2, 1); err != nil {
		t.Fatalf("add invite failed: %v", err)
	}
	req, err := st.CreateJoinRequest(team.ID, 3, "")
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	// Fresh offers survive a sweep.
	if invites, requests := svc.Sweep(); invites != 0 || requests != 0 {
		t.Errorf("Sweep() = (%d, %d), expected fresh offers untouched", invites, requests)
	}

	// Backdate both past their TTLs.
	stale := time.Now().AddDate(0, 0, -60)
	db.Model(&models.TeamInvite{}).Where("team_id = ?", team.ID).Update("created_at", stale)
	db.Model(&models.JoinRequest{}).Where("id = ?", req.ID).Update("created_at", stale)

	invites, requests := svc.Sweep()
	if invites != 1 || requests != 1 {
		t.Errorf("Sweep() = (%d, %d), expected (1, 1)", invites, requests)
	}

	swept, err := st.GetJoinRequest(req.ID)
	if err != nil {
		t.Fatalf("GetJoinRequest failed: %v", err)
	}
	if swept.Status != models.JoinRequestCancelled {
		t.Errorf("expected stale request cancelled, got %s", swept.Status)
	}
}

func TestSweep_ZeroTTLDisablesSweep(t *testing.T) {
	svc, st, db := setupExpiry(t, &config.MembershipConfig{})

	team, err := st.CreateTeam(1, &store.TeamSpec{
		Name: "core", MaxMembers: 10,
		IsPublic: true, AllowJoinRequests: true, RequireApproval: true,
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if _, err := st.ConditionalAddInvite(team.ID, 2, 1); err != nil {
		t.Fatalf("add invite failed: %v", err)
	}
	db.Model(&models.TeamInvite{}).Where("team_id = ?", team.ID).
		Update("created_at", time.Now().AddDate(0, 0, -365))

	if invites, requests := svc.Sweep(); invites != 0 || requests != 0 {
		t.Errorf("Sweep() with zero TTLs = (%d, %d), expected (0, 0)", invites, requests)
	}
}
