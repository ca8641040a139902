package notification

import (
	"context"
	"time"

	"attendance/internal/query"
	"attendance/internal/user"
)

// Notification is a message for one user, or a broadcast when UserID is nil.
// IsAdmin marks the admin audience.
type Notification struct {
	ID        string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *string    `gorm:"type:uuid;index" json:"userId,omitempty"`
	User      *user.User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Type      string     `gorm:"type:varchar(64);not null;index" json:"type"`
	Title     string     `gorm:"not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	IsRead    *bool      `json:"isRead"`
	IsAdmin   bool       `gorm:"not null;index" json:"isAdmin"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Notification) TableName() string { return "notifications" }

// Read treats a null isRead as unread.
func (n Notification) Read() bool { return n.IsRead != nil && *n.IsRead }

// Types used by the services that emit notifications.
const (
	TypeAttendance   = "attendance"
	TypeCheckOut     = "attendance_checkout"
	TypeUpdate       = "attendance_update"
	TypeDelete       = "attendance_delete"
	TypeRegistration = "registration"
	TypeAccount      = "account"
	TypeGeneral      = "general"
)

// Input creates a notification.
type Input struct {
	UserID  *string `json:"userId" binding:"omitempty,uuid"`
	Type    string  `json:"type" binding:"required,max=64"`
	Title   string  `json:"title" binding:"required,max=200"`
	Message string  `json:"message" binding:"required"`
	IsAdmin bool    `json:"isAdmin"`
}

// Update is a partial update.
type Update struct {
	Type    *string `json:"type" binding:"omitempty,max=64"`
	Title   *string `json:"title" binding:"omitempty,max=200"`
	Message *string `json:"message"`
	IsRead  *bool   `json:"isRead"`
}

// Filter narrows a listing. Search matches title or message. UserID is a
// scope set by the service.
type Filter struct {
	Search  string     `form:"search"`
	Type    string     `form:"type"`
	Read    *bool      `form:"read"`
	IsAdmin *bool      `form:"isAdmin"`
	From    *time.Time `form:"from" time_format:"2006-01-02"`
	To      *time.Time `form:"to" time_format:"2006-01-02"`
	UserID  string     `form:"-"`
}

// Scope selects rows for bulk read-state changes and counts. Set fields
// are ANDed.
type Scope struct {
	IDs     []string
	UserID  string
	IsAdmin *bool
	Unread  bool
}

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id string, withUser bool) (Notification, error)
	List(ctx context.Context, f Filter, p query.Pagination) (query.Page[Notification], error)
	Update(ctx context.Context, n *Notification) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	MarkRead(ctx context.Context, s Scope) (int64, error)
	Count(ctx context.Context, s Scope) (int64, error)
}
