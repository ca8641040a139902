package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"attendance/internal/apperr"
	"attendance/internal/attendance"
	"attendance/internal/query"
)

// Attendance implements attendance.Repository, enforcing the
// (staff, day) uniqueness the database index enforces.
type Attendance struct{ s *Store }

var _ attendance.Repository = (*Attendance)(nil)

func sameDay(a, b datatypes.Date) bool {
	return time.Time(a).Equal(time.Time(b))
}

// dayTaken reports whether staffID has a record on day other than
// exceptID. Callers hold the lock.
func (r *Attendance) dayTaken(staffID string, day datatypes.Date, exceptID string) bool {
	for id, a := range r.s.attendance {
		if id != exceptID && a.StaffID == staffID && sameDay(a.CheckInDate, day) {
			return true
		}
	}
	return false
}

// withStaff attaches the staff row and its user. Callers hold the lock.
func (r *Attendance) withStaff(a attendance.Attendance) attendance.Attendance {
	a.Staff = nil
	if st, ok := r.s.staff[a.StaffID]; ok {
		st = r.s.staffWithUser(st)
		a.Staff = &st
	}
	return a
}

func (r *Attendance) Create(_ context.Context, a *attendance.Attendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[a.StaffID]; !ok {
		return apperr.NotFound("Staff")
	}
	if r.dayTaken(a.StaffID, a.CheckInDate, "") {
		return attendance.ErrDuplicateDay
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := r.s.tick()
	a.CreatedAt, a.UpdatedAt = now, now
	row := *a
	row.Staff, row.MarkedBy = nil, nil
	r.s.attendance[a.ID] = row
	return nil
}

func (r *Attendance) Get(_ context.Context, id string) (attendance.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attendance[id]
	if !ok {
		return attendance.Attendance{}, apperr.NotFound("Attendance record")
	}
	return r.withStaff(a), nil
}

func (r *Attendance) List(_ context.Context, f attendance.Filter, p query.Pagination) (query.Page[attendance.Attendance], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p = p.Normalize()
	var rows []attendance.Attendance
	var totalAll int64
	for _, a := range r.s.attendance {
		st, ok := r.s.staff[a.StaffID]
		if !ok {
			continue
		}
		if f.UserID != "" && (st.UserID == nil || *st.UserID != f.UserID) {
			continue
		}
		totalAll++
		if f.Search != "" && !query.Contains(st.FirstName, f.Search) &&
			!query.Contains(st.LastName, f.Search) && !query.Contains(st.Department, f.Search) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.StaffID != "" && a.StaffID != f.StaffID {
			continue
		}
		if !query.InRange(a.CheckIn, f.From, f.To) {
			continue
		}
		rows = append(rows, r.withStaff(a))
	}
	sortDesc(rows, func(a attendance.Attendance) time.Time { return a.CheckIn })
	return query.NewPage(query.Window(rows, p), int64(len(rows)), totalAll, p), nil
}

func (r *Attendance) Update(_ context.Context, a *attendance.Attendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.attendance[a.ID]; !ok {
		return apperr.NotFound("Attendance record")
	}
	if r.dayTaken(a.StaffID, a.CheckInDate, a.ID) {
		return attendance.ErrDuplicateDay
	}
	a.UpdatedAt = r.s.tick()
	row := *a
	row.Staff, row.MarkedBy = nil, nil
	r.s.attendance[a.ID] = row
	return nil
}

func (r *Attendance) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.attendance[id]; !ok {
		return apperr.NotFound("Attendance record")
	}
	delete(r.s.attendance, id)
	return nil
}

func (r *Attendance) ExistsOn(_ context.Context, staffID string, day datatypes.Date) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.dayTaken(staffID, day, ""), nil
}

func (r *Attendance) LastCheckIn(_ context.Context, staffID string) (*time.Time, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var last *time.Time
	for _, a := range r.s.attendance {
		if a.StaffID != staffID {
			continue
		}
		if last == nil || a.CheckIn.After(*last) {
			t := a.CheckIn
			last = &t
		}
	}
	return last, nil
}
