package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the projection of the platform's user directory this service
// reads. Account management and credential storage live elsewhere.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	GlobalRole  string    `json:"global_role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	GlobalRoleUser  = "user"
	GlobalRoleStaff = "staff"
)

// Capabilities is what the requester is allowed to do beyond plain
// membership, resolved by the caller from group/role state.
type Capabilities struct {
	// AdminOfGroups lists group ids the user administers. A group admin
	// may delete any message in that group's bound chat.
	AdminOfGroups []uuid.UUID
}

func (c Capabilities) IsGroupAdmin(groupID uuid.UUID) bool {
	for _, id := range c.AdminOfGroups {
		if id == groupID {
			return true
		}
	}
	return false
}
