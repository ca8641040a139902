package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"attendance/internal/apperr"
	"attendance/internal/query"
	"attendance/internal/staff"
	"attendance/internal/user"
)

// Staff implements staff.Repository.
type Staff struct{ s *Store }

var _ staff.Repository = (*Staff)(nil)

func (r *Staff) CreateWithUser(_ context.Context, u *user.User, st *staff.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := (&Users{s: r.s}).create(u); err != nil {
		return err
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.UserID = &u.ID
	now := r.s.tick()
	st.CreatedAt, st.UpdatedAt = now, now
	st.User = nil
	r.s.staff[st.ID] = *st
	st.User = u
	return nil
}

// Insert adds a profile without a linked account.
func (r *Staff) Insert(st *staff.Staff) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := r.s.tick()
	st.CreatedAt, st.UpdatedAt = now, now
	st.User = nil
	r.s.staff[st.ID] = *st
}

func (r *Staff) Get(_ context.Context, id string) (staff.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.staff[id]
	if !ok {
		return staff.Staff{}, apperr.NotFound("Staff")
	}
	return r.s.staffWithUser(st), nil
}

func (r *Staff) GetByUserID(_ context.Context, userID string) (staff.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, st := range r.s.staff {
		if st.UserID != nil && *st.UserID == userID {
			return r.s.staffWithUser(st), nil
		}
	}
	return staff.Staff{}, apperr.NotFound("Staff profile")
}

func inStaffScope(st staff.Staff, f staff.Filter) bool {
	return f.UserID == "" || (st.UserID != nil && *st.UserID == f.UserID)
}

func matchStaff(st staff.Staff, f staff.Filter) bool {
	if f.Search != "" {
		phone := ""
		if st.Phone != nil {
			phone = *st.Phone
		}
		if !query.Contains(st.FirstName, f.Search) && !query.Contains(st.LastName, f.Search) &&
			!query.Contains(st.Department, f.Search) && !query.Contains(phone, f.Search) {
			return false
		}
	}
	if f.Department != "" && st.Department != f.Department {
		return false
	}
	return query.InRange(st.CreatedAt, f.JoinedFrom, f.JoinedTo)
}

func (r *Staff) List(_ context.Context, f staff.Filter, p query.Pagination) (query.Page[staff.Staff], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p = p.Normalize()
	var rows []staff.Staff
	var totalAll int64
	for _, st := range r.s.staff {
		if !inStaffScope(st, f) {
			continue
		}
		totalAll++
		if matchStaff(st, f) {
			rows = append(rows, r.s.staffWithUser(st))
		}
	}
	sortDesc(rows, func(st staff.Staff) time.Time { return st.CreatedAt })
	return query.NewPage(query.Window(rows, p), int64(len(rows)), totalAll, p), nil
}

func (r *Staff) All(_ context.Context) ([]staff.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]staff.Staff, 0, len(r.s.staff))
	for _, st := range r.s.staff {
		out = append(out, r.s.staffWithUser(st))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].LastName < out[j].LastName
	})
	return out, nil
}

func (r *Staff) Departments(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]bool{}
	out := []string{}
	for _, st := range r.s.staff {
		if !seen[st.Department] {
			seen[st.Department] = true
			out = append(out, st.Department)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Staff) Update(_ context.Context, st *staff.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[st.ID]; !ok {
		return apperr.NotFound("Staff")
	}
	st.UpdatedAt = r.s.tick()
	row := *st
	row.User = nil
	r.s.staff[st.ID] = row
	return nil
}

func (r *Staff) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.staff[id]
	if !ok {
		return apperr.NotFound("Staff")
	}
	delete(r.s.staff, id)
	for aid, a := range r.s.attendance {
		if a.StaffID == id {
			delete(r.s.attendance, aid)
		}
	}
	if st.UserID != nil {
		r.s.deleteUser(*st.UserID)
	}
	return nil
}
