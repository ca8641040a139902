package user

import (
	"context"
	"strings"
	"time"

	"attendance/internal/auth"
	"attendance/internal/query"
)

// User is a login identity.
type User struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string     `gorm:"not null" json:"name"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string     `gorm:"column:password;not null" json:"-"`
	Role            auth.Role  `gorm:"type:varchar(16);not null;index" json:"role"`
	IsActive        bool       `gorm:"not null" json:"isActive"`
	IsEmailVerified bool       `gorm:"not null" json:"isEmailVerified"`
	Image           *string    `json:"image,omitempty"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Filter narrows a user listing. All set fields are ANDed; Search matches
// name or email case-insensitively.
type Filter struct {
	Search     string     `form:"search"`
	Role       auth.Role  `form:"role"`
	Verified   *bool      `form:"verified"`
	Active     *bool      `form:"active"`
	JoinedFrom *time.Time `form:"joinedFrom" time_format:"2006-01-02"`
	JoinedTo   *time.Time `form:"joinedTo" time_format:"2006-01-02"`
}

// NewUser is the input for Create.
type NewUser struct {
	Name            string    `json:"name" binding:"required,max=120"`
	Email           string    `json:"email" binding:"required,email"`
	Password        string    `json:"password" binding:"required,min=8"`
	Role            auth.Role `json:"role" binding:"omitempty,role"`
	IsActive        *bool     `json:"isActive"`
	IsEmailVerified bool      `json:"isEmailVerified"`
}

// UpdateUser is the admin partial update; nil fields are left alone.
type UpdateUser struct {
	Name            *string    `json:"name" binding:"omitempty,max=120"`
	Email           *string    `json:"email" binding:"omitempty,email"`
	Password        *string    `json:"password" binding:"omitempty,min=8"`
	Role            *auth.Role `json:"role" binding:"omitempty,role"`
	IsActive        *bool      `json:"isActive"`
	IsEmailVerified *bool      `json:"isEmailVerified"`
	Image           *string    `json:"image"`
}

// UpdateProfile is what a user may change about themselves.
type UpdateProfile struct {
	Name            *string `json:"name" binding:"omitempty,max=120"`
	Image           *string `json:"image"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword" binding:"omitempty,min=8"`
}

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, f Filter, p query.Pagination) (query.Page[User], error)
	FindByIDs(ctx context.Context, ids []string) ([]User, error)
	FindActiveByRole(ctx context.Context, role auth.Role) ([]User, error)
	CountByRole(ctx context.Context, role auth.Role) (int64, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
