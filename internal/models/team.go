package models

import "time"

// Team status values. Archived is terminal: no mutating operation acts on an
// archived team.
const (
	TeamStatusActive   = "active"
	TeamStatusArchived = "archived"
)

// TeamRole is a member's role within a team. Owner and admin share management
// capability; only owners may archive the team or transfer ownership.
type TeamRole string

const (
	RoleOwner  TeamRole = "owner"
	RoleAdmin  TeamRole = "admin"
	RoleMember TeamRole = "member"
)

// ValidRole reports whether r is one of the three team roles.
func ValidRole(r TeamRole) bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Team is a bounded collaborative group with a hard membership ceiling.
// Settings are flattened onto columns so conditional writes can reference
// them in a single statement.
type Team struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	Name              string       `gorm:"size:200;not null" json:"name"`
	Description       string       `gorm:"type:text" json:"description"`
	MaxMembers        int          `gorm:"not null" json:"max_members"`
	IsPublic          bool         `gorm:"default:true" json:"is_public"`
	AllowJoinRequests bool         `gorm:"default:true" json:"allow_join_requests"`
	RequireApproval   bool         `gorm:"default:true" json:"require_approval"`
	Status            string       `gorm:"size:20;default:active;index" json:"status"`
	CreatedBy         uint         `json:"created_by"`
	Members           []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Invites           []TeamInvite `gorm:"foreignKey:TeamID" json:"invites,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// TeamMember links a user to a team with a role. Rows are hard-deleted on
// removal; the unique index enforces one row per (team, user).
type TeamMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"uniqueIndex:idx_team_user;not null" json:"team_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_team_user;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      TeamRole  `gorm:"size:20;not null" json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamInvite is an owner/admin-initiated membership offer awaiting the
// target user's response. One outstanding invite per (team, user).
type TeamInvite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"uniqueIndex:idx_team_invitee;not null" json:"team_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_team_invitee;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	InvitedBy uint      `gorm:"not null" json:"invited_by"`
	Token     string    `gorm:"uniqueIndex;size:36;not null" json:"token"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Team) TableName() string       { return "teams" }
func (TeamMember) TableName() string { return "team_members" }
func (TeamInvite) TableName() string { return "team_invites" }
