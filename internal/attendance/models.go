package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"attendance/internal/apperr"
	"attendance/internal/query"
	"attendance/internal/staff"
	"attendance/internal/user"
)

// Status is the recorded outcome of a day.
type Status string

const (
	StatusPresent Status = "Present"
	StatusLate    Status = "Late"
	StatusAbsent  Status = "Absent"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// State is the lifecycle position of a record.
type State string

const (
	StateUnmarked   State = "unmarked"
	StateCheckedIn  State = "checked_in"
	StateCheckedOut State = "checked_out"
)

// Attendance is one staff member's record for one calendar day. The pair
// (StaffID, CheckInDate) is unique.
type Attendance struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	StaffID     string         `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_staff_day,priority:1" json:"staffId"`
	Staff       *staff.Staff   `gorm:"constraint:OnDelete:CASCADE" json:"staff,omitempty"`
	Status      Status         `gorm:"type:varchar(16);not null;index" json:"status"`
	CheckIn     time.Time      `gorm:"not null;index" json:"checkIn"`
	CheckInDate datatypes.Date `gorm:"not null;uniqueIndex:idx_attendance_staff_day,priority:2" json:"checkInDate"`
	CheckOut    *time.Time     `json:"checkOut"`
	Notes       *string        `json:"notes,omitempty"`
	MarkedByID  *string        `gorm:"type:uuid" json:"markedById,omitempty"`
	MarkedBy    *user.User     `gorm:"constraint:OnDelete:SET NULL" json:"markedBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (Attendance) TableName() string { return "attendance" }

// State derives the lifecycle state from CheckOut.
func (a Attendance) State() State {
	if a.ID == "" {
		return StateUnmarked
	}
	if a.CheckOut != nil {
		return StateCheckedOut
	}
	return StateCheckedIn
}

// ErrDuplicateDay is returned by repositories when a staff member already
// has a record for the day.
var ErrDuplicateDay = apperr.New(apperr.ErrConflict, "Attendance already marked for today")

// Filter narrows a listing. Search matches the staff member's first name,
// last name or department. UserID is a scope set by the service.
type Filter struct {
	Search  string     `form:"search"`
	Status  Status     `form:"status" binding:"omitempty,attendance_status"`
	StaffID string     `form:"staffId" binding:"omitempty,uuid"`
	From    *time.Time `form:"from" time_format:"2006-01-02"`
	To      *time.Time `form:"to" time_format:"2006-01-02"`
	UserID  string     `form:"-"`
}

// MarkInput records attendance on behalf of a staff member.
type MarkInput struct {
	StaffID  string     `json:"staffId" binding:"required,uuid"`
	Status   Status     `json:"status" binding:"required,attendance_status"`
	CheckIn  time.Time  `json:"checkIn" binding:"required"`
	CheckOut *time.Time `json:"checkOut"`
	Notes    *string    `json:"notes" binding:"omitempty,max=500"`
}

// NullableTime tells an absent JSON field apart from an explicit null.
type NullableTime struct {
	Set  bool
	Time *time.Time
}

func (n *NullableTime) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	n.Time = &t
	return nil
}

// UpdateInput is a partial update. CheckOut set to null clears it.
type UpdateInput struct {
	Status   *Status      `json:"status" binding:"omitempty,attendance_status"`
	CheckIn  *time.Time   `json:"checkIn"`
	CheckOut NullableTime `json:"checkOut"`
	Notes    *string      `json:"notes" binding:"omitempty,max=500"`
}

// Member is a staff profile with today's check-in state.
type Member struct {
	staff.Staff
	MarkedToday bool       `json:"markedToday"`
	LastCheckIn *time.Time `json:"lastCheckIn"`
}

// Repository persists attendance records.
type Repository interface {
	// Create returns ErrDuplicateDay when the day key is taken.
	Create(ctx context.Context, a *Attendance) error
	Get(ctx context.Context, id string) (Attendance, error)
	List(ctx context.Context, f Filter, p query.Pagination) (query.Page[Attendance], error)
	// Update returns ErrDuplicateDay when a moved check-in collides.
	Update(ctx context.Context, a *Attendance) error
	Delete(ctx context.Context, id string) error
	ExistsOn(ctx context.Context, staffID string, day datatypes.Date) (bool, error)
	LastCheckIn(ctx context.Context, staffID string) (*time.Time, error)
}
