package services

import (
	"testing"

	"github.com/teamforge/teamforge/internal/models"
)

func snapshotTeam() *models.Team {
	return &models.Team{
		ID:         1,
		MaxMembers: 10,
		Status:     models.TeamStatusActive,
		Members: []models.TeamMember{
			{TeamID: 1, UserID: 1, Role: models.RoleOwner},
			{TeamID: 1, UserID: 2, Role: models.RoleAdmin},
			{TeamID: 1, UserID: 3, Role: models.RoleMember},
		},
		Invites: []models.TeamInvite{
			{TeamID: 1, UserID: 7, InvitedBy: 1},
		},
	}
}

func TestRoleOf(t *testing.T) {
	team := snapshotTeam()

	tests := []struct {
		userID   uint
		wantRole models.TeamRole
		wantOK   bool
	}{
		{1, models.RoleOwner, true},
		{2, models.RoleAdmin, true},
		{3, models.RoleMember, true},
		{4, "", false},
	}

	for _, tt := range tests {
		role, ok := RoleOf(team, tt.userID)
		if role != tt.wantRole || ok != tt.wantOK {
			t.Errorf("RoleOf(%d) = (%q, %v), expected (%q, %v)",
				tt.userID, role, ok, tt.wantRole, tt.wantOK)
		}
	}
}

func TestIsMember(t *testing.T) {
	team := snapshotTeam()

	if !IsMember(team, 3) {
		t.Error("expected user 3 to be a member")
	}
	if IsMember(team, 7) {
		t.Error("invited user 7 is not yet a member")
	}
}

func TestIsOwnerOrAdmin(t *testing.T) {
	team := snapshotTeam()

	tests := []struct {
		userID uint
		want   bool
	}{
		{1, true},
		{2, true},
		{3, false},
		{4, false},
	}

	for _, tt := range tests {
		if got := IsOwnerOrAdmin(team, tt.userID); got != tt.want {
			t.Errorf("IsOwnerOrAdmin(%d) = %v, expected %v", tt.userID, got, tt.want)
		}
	}
}

func TestIsOwner(t *testing.T) {
	team := snapshotTeam()

	if !IsOwner(team, 1) {
		t.Error("expected user 1 to be owner")
	}
	if IsOwner(team, 2) {
		t.Error("admin is not owner")
	}
}

func TestRemainingOwnerCount(t *testing.T) {
	team := snapshotTeam()

	if n := RemainingOwnerCount(team, 1); n != 0 {
		t.Errorf("RemainingOwnerCount excluding sole owner = %d, expected 0", n)
	}
	if n := RemainingOwnerCount(team, 3); n != 1 {
		t.Errorf("RemainingOwnerCount excluding member = %d, expected 1", n)
	}

	team.Members = append(team.Members, models.TeamMember{TeamID: 1, UserID: 5, Role: models.RoleOwner})
	if n := RemainingOwnerCount(team, 1); n != 1 {
		t.Errorf("RemainingOwnerCount with co-owner = %d, expected 1", n)
	}
}

func TestHasPendingInvite(t *testing.T) {
	team := snapshotTeam()

	if !HasPendingInvite(team, 7) {
		t.Error("expected pending invite for user 7")
	}
	if HasPendingInvite(team, 3) {
		t.Error("member 3 has no pending invite")
	}
}
