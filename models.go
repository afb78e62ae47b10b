package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is a regular account
	RoleUser UserRole = "user"
	// RoleAdmin can manage the whole user collection
	RoleAdmin UserRole = "admin"
)

// UserStatus is the user's lifecycle status
type UserStatus = string

const (
	// UserStatusPending is a created but not yet activated account
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is the only status allowed to authenticate requests
	UserStatusActive UserStatus = "active"
	// UserStatusInactive is a disabled account
	UserStatusInactive UserStatus = "inactive"
)

// IsValidRole checks the role is one of the predefined valid roles
func IsValidRole(role UserRole) bool {
	switch role {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsValidStatus checks the status is one of the predefined valid statuses
func IsValidStatus(status UserStatus) bool {
	switch status {
	case UserStatusPending, UserStatusActive, UserStatusInactive:
		return true
	default:
		return false
	}
}

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:user,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	FullName       string     `bun:"full_name,notnull" json:"full_name"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	HashedPassword string     `bun:"hashed_password,notnull" json:"-"`
	Status         UserStatus `bun:"status,notnull" json:"status"`
	Role           UserRole   `bun:"role,notnull" json:"role"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// IsActive reports whether the account may authenticate requests
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsAdmin reports whether the account has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// EnsureDefaults fills role and status when the caller left them empty
func (u *User) EnsureDefaults() {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// Public returns the transport safe projection of the user
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Status:   u.Status,
		Role:     u.Role,
	}
}

// UserPublic is the projection returned to API clients. It never carries
// the password hash.
type UserPublic struct {
	ID       uuid.UUID  `json:"id"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	Status   UserStatus `json:"status"`
	Role     UserRole   `json:"role"`
}

// UsersPublic is the paged collection envelope for the users listing
type UsersPublic struct {
	Data  []UserPublic `json:"data"`
	Count int          `json:"count"`
}

// PublicUsers maps a slice of users to their public projection
func PublicUsers(list []*User) []UserPublic {
	out := make([]UserPublic, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	return out
}

// NormalizeEmail lowercases and trims an email address. Email comparison is
// case insensitive across the store; we normalize on insert and on query.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
