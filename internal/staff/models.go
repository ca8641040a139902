package staff

import (
	"context"
	"strings"
	"time"

	"attendance/internal/query"
	"attendance/internal/user"
)

// Staff is an employee profile, optionally linked to a login User.
type Staff struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName  string     `gorm:"not null" json:"firstName"`
	MiddleName *string    `json:"middleName,omitempty"`
	LastName   string     `gorm:"not null" json:"lastName"`
	Department string     `gorm:"not null;index" json:"department"`
	Phone      *string    `json:"phone,omitempty"`
	UserID     *string    `gorm:"type:uuid;uniqueIndex" json:"userId,omitempty"`
	User       *user.User `gorm:"constraint:OnDelete:SET NULL" json:"user,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (Staff) TableName() string { return "staff" }

// FullName joins the name parts, skipping an empty middle name.
func (s Staff) FullName() string {
	parts := []string{s.FirstName}
	if s.MiddleName != nil && strings.TrimSpace(*s.MiddleName) != "" {
		parts = append(parts, strings.TrimSpace(*s.MiddleName))
	}
	parts = append(parts, s.LastName)
	return strings.Join(parts, " ")
}

// Filter narrows a staff listing. Search matches first, last name,
// department or phone. UserID is a scope set by the service, not by
// query parameters.
type Filter struct {
	Search     string     `form:"search"`
	Department string     `form:"department"`
	JoinedFrom *time.Time `form:"joinedFrom" time_format:"2006-01-02"`
	JoinedTo   *time.Time `form:"joinedTo" time_format:"2006-01-02"`
	UserID     string     `form:"-"`
}

// NewStaff is the input for Create: the profile plus the credentials of
// the linked User.
type NewStaff struct {
	FirstName  string  `json:"firstName" binding:"required,max=80"`
	MiddleName *string `json:"middleName" binding:"omitempty,max=80"`
	LastName   string  `json:"lastName" binding:"required,max=80"`
	Department string  `json:"department" binding:"required,max=80"`
	Phone      *string `json:"phone" binding:"omitempty,max=32"`
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required,min=8"`
}

// UpdateStaff is a partial update of the profile.
type UpdateStaff struct {
	FirstName  *string `json:"firstName" binding:"omitempty,max=80"`
	MiddleName *string `json:"middleName" binding:"omitempty,max=80"`
	LastName   *string `json:"lastName" binding:"omitempty,max=80"`
	Department *string `json:"department" binding:"omitempty,max=80"`
	Phone      *string `json:"phone" binding:"omitempty,max=32"`
}

// Repository persists staff profiles.
type Repository interface {
	// CreateWithUser inserts u and s in one transaction, linking s to u.
	CreateWithUser(ctx context.Context, u *user.User, s *Staff) error
	Get(ctx context.Context, id string) (Staff, error)
	GetByUserID(ctx context.Context, userID string) (Staff, error)
	List(ctx context.Context, f Filter, p query.Pagination) (query.Page[Staff], error)
	All(ctx context.Context) ([]Staff, error)
	Departments(ctx context.Context) ([]string, error)
	Update(ctx context.Context, s *Staff) error
	// Delete removes the profile, its attendance and its linked User.
	Delete(ctx context.Context, id string) error
}
