package access

import (
	"time"
)

// User statuses for the access-gate workflow.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusRevoked  = "revoked"
)

// KnownStatus reports whether s is one of the workflow statuses.
func KnownStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusRevoked:
		return true
	}
	return false
}

// User is a registered actor keyed by the external chat identity.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey;column:id"`
	ExternalID   int64     `json:"external_id" gorm:"column:external_id;uniqueIndex"`
	Username     string    `json:"username,omitempty" gorm:"column:username"`
	FirstName    string    `json:"first_name,omitempty" gorm:"column:first_name"`
	LastName     string    `json:"last_name,omitempty" gorm:"column:last_name"`
	FullName     string    `json:"full_name,omitempty" gorm:"column:full_name"`
	Organization string    `json:"organization,omitempty" gorm:"column:organization"`
	Status       string    `json:"status" gorm:"column:status"`
	IsAdmin      bool      `json:"is_admin" gorm:"column:is_admin"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName prefers the explicit full name, falling back to the first and
// last name from the chat profile.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}
