package models

import "time"

// JoinRequestStatus is the join-request state machine. Pending is the only
// non-terminal state; transitions out of it are compare-and-set in the store.
type JoinRequestStatus string

const (
	JoinRequestPending   JoinRequestStatus = "pending"
	JoinRequestApproved  JoinRequestStatus = "approved"
	JoinRequestRejected  JoinRequestStatus = "rejected"
	JoinRequestCancelled JoinRequestStatus = "cancelled"
)

// Terminal reports whether s permits no further transitions.
func (s JoinRequestStatus) Terminal() bool {
	return s != JoinRequestPending
}

// JoinRequest is a user-initiated request to join a public team. At most one
// pending request may exist per (team, user); enforced by a guarded insert,
// not a unique index, because terminal requests for the same pair accumulate.
type JoinRequest struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	PublicID  string            `gorm:"uniqueIndex;size:36;not null" json:"public_id"`
	TeamID    uint              `gorm:"index:idx_request_pair;not null" json:"team_id"`
	Team      *Team             `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	UserID    uint              `gorm:"index:idx_request_pair;not null" json:"user_id"`
	User      *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Message   string            `gorm:"size:1000" json:"message"`
	Status    JoinRequestStatus `gorm:"size:20;default:pending;index" json:"status"`
	HandledBy *uint             `json:"handled_by,omitempty"`
	HandledAt *time.Time        `json:"handled_at,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (JoinRequest) TableName() string { return "join_requests" }
