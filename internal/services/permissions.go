package services

import "github.com/teamforge/teamforge/internal/models"

// Pure role/capability checks over a loaded team snapshot. No I/O happens
// here; callers are responsible for reading a fresh snapshot first. All
// authorization branching in the coordinator goes through these functions.

// IsMember reports whether userID holds any role in the team.
func IsMember(team *models.Team, userID uint) bool {
	_, ok := RoleOf(team, userID)
	return ok
}

// RoleOf returns the member's role, if any.
func RoleOf(team *models.Team, userID uint) (models.TeamRole, bool) {
	for i := range team.Members {
		if team.Members[i].UserID == userID {
			return team.Members[i].Role, true
		}
	}
	return "", false
}

// IsOwnerOrAdmin reports management capability.
func IsOwnerOrAdmin(team *models.Team, userID uint) bool {
	role, ok := RoleOf(team, userID)
	return ok && (role == models.RoleOwner || role == models.RoleAdmin)
}

// IsOwner reports ownership.
func IsOwner(team *models.Team, userID uint) bool {
	role, ok := RoleOf(team, userID)
	return ok && role == models.RoleOwner
}

// RemainingOwnerCount counts owners other than excluding. Used by the
// last-owner guard: removing or demoting an owner is only legal while this
// stays above zero.
func RemainingOwnerCount(team *models.Team, excluding uint) int {
	n := 0
	for i := range team.Members {
		if team.Members[i].Role == models.RoleOwner && team.Members[i].UserID != excluding {
			n++
		}
	}
	return n
}

// HasPendingInvite reports whether userID holds an outstanding invite.
func HasPendingInvite(team *models.Team, userID uint) bool {
	for i := range team.Invites {
		if team.Invites[i].UserID == userID {
			return true
		}
	}
	return false
}
