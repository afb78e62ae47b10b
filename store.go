package users

import (
	"context"

	"github.com/google/uuid"
)

// Order keys accepted by List. Anything else falls back to OrderByFullName.
const (
	OrderByFullName = "full_name"
	OrderByEmail    = "email"
)

// UserFilter is the predicate for Count, List and FindOne. Nil fields do
// not constrain the query; a nil filter matches everything.
type UserFilter struct {
	Email  *string
	Status *UserStatus
	Role   *UserRole
}

// FilterByStatus builds a status predicate
func FilterByStatus(status UserStatus) *UserFilter {
	return &UserFilter{Status: &status}
}

// FilterByRole builds a role predicate
func FilterByRole(role UserRole) *UserFilter {
	return &UserFilter{Role: &role}
}

// FilterByEmail builds an email predicate, normalized to lower case
func FilterByEmail(email string) *UserFilter {
	e := NormalizeEmail(email)
	return &UserFilter{Email: &e}
}

// ListOptions carries the paging parameters for List
type ListOptions struct {
	Skip    int
	Limit   int
	OrderBy string
	Asc     bool
}

// UserPatch is a partial update. Nil fields are left untouched. The service
// strips Role and Status before applying patches from non admin callers.
type UserPatch struct {
	FullName       *string
	Email          *string
	HashedPassword *string
	Status         *UserStatus
	Role           *UserRole
}

// IsEmpty reports whether the patch changes nothing
func (p UserPatch) IsEmpty() bool {
	return p.FullName == nil && p.Email == nil && p.HashedPassword == nil &&
		p.Status == nil && p.Role == nil
}

// Apply copies the set fields onto the user
func (p UserPatch) Apply(u *User) {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.HashedPassword != nil {
		u.HashedPassword = *p.HashedPassword
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
}

// UserStore is the persistence contract over the User entity. Each
// operation is a single transaction; uniqueness is enforced by the backing
// store's constraint and surfaces as ErrDuplicateEmail, there is no
// pre-check of email existence.
type UserStore interface {
	// Insert persists a new user, filling id and timestamps
	Insert(ctx context.Context, user *User) (*User, error)
	// GetByID returns the user or ErrUserNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetByEmail looks up by normalized email or ErrUserNotFound
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Update applies a patch, refreshing updated_at
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error)
	// Delete removes the user and reports whether it was found
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// Count returns the number of users matching the filter
	Count(ctx context.Context, filter *UserFilter) (int, error)
	// List returns an ordered page of users; ties are broken by id so
	// sequential pages partition the set with no overlap and no gap
	List(ctx context.Context, filter *UserFilter, opts ListOptions) ([]*User, error)
	// FindOne returns the first match or ErrUserNotFound
	FindOne(ctx context.Context, filter *UserFilter) (*User, error)
}
