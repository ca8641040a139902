// Package memstore is an in-memory implementation of every repository,
// with the same uniqueness rules and delete cascades as the Postgres
// schema. Tests use it in place of a database.
package memstore

import (
	"sort"
	"sync"
	"time"

	"attendance/internal/attendance"
	"attendance/internal/notification"
	"attendance/internal/staff"
	"attendance/internal/user"
)

// Store holds every table behind one lock.
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	last          time.Time
	users         map[string]user.User
	staff         map[string]staff.Staff
	attendance    map[string]attendance.Attendance
	notifications map[string]notification.Notification
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[string]user.User),
		staff:         make(map[string]staff.Staff),
		attendance:    make(map[string]attendance.Attendance),
		notifications: make(map[string]notification.Notification),
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Users returns the user repository.
func (s *Store) Users() *Users { return &Users{s: s} }

// Staff returns the staff repository.
func (s *Store) Staff() *Staff { return &Staff{s: s} }

// Attendance returns the attendance repository.
func (s *Store) Attendance() *Attendance { return &Attendance{s: s} }

// Notifications returns the notification repository.
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }

// tick returns a strictly increasing timestamp so created_at orderings
// are stable. Callers hold the lock.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// deleteUser removes a user and applies its cascades. Callers hold the lock.
func (s *Store) deleteUser(id string) {
	delete(s.users, id)
	for nid, n := range s.notifications {
		if n.UserID != nil && *n.UserID == id {
			delete(s.notifications, nid)
		}
	}
	for sid, st := range s.staff {
		if st.UserID != nil && *st.UserID == id {
			st.UserID = nil
			s.staff[sid] = st
		}
	}
	for aid, a := range s.attendance {
		if a.MarkedByID != nil && *a.MarkedByID == id {
			a.MarkedByID = nil
			s.attendance[aid] = a
		}
	}
}

// staffWithUser returns a copy of a staff row with its user attached.
// Callers hold the lock.
func (s *Store) staffWithUser(st staff.Staff) staff.Staff {
	st.User = nil
	if st.UserID != nil {
		if u, ok := s.users[*st.UserID]; ok {
			st.User = &u
		}
	}
	return st
}

func sortDesc[T any](rows []T, key func(T) time.Time) {
	sort.SliceStable(rows, func(i, j int) bool { return key(rows[i]).After(key(rows[j])) })
}
