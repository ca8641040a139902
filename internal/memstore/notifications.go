package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"attendance/internal/apperr"
	"attendance/internal/notification"
	"attendance/internal/query"
)

// Notifications implements notification.Repository.
type Notifications struct{ s *Store }

var _ notification.Repository = (*Notifications)(nil)

func (r *Notifications) Create(_ context.Context, n *notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.UserID != nil {
		if _, ok := r.s.users[*n.UserID]; !ok {
			return apperr.NotFound("User")
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := r.s.tick()
	n.CreatedAt, n.UpdatedAt = now, now
	row := *n
	row.User = nil
	r.s.notifications[n.ID] = row
	return nil
}

func (r *Notifications) Get(_ context.Context, id string, withUser bool) (notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return notification.Notification{}, apperr.NotFound("Notification")
	}
	if withUser && n.UserID != nil {
		if u, ok := r.s.users[*n.UserID]; ok {
			n.User = &u
		}
	}
	return n, nil
}

func inNotificationScope(n notification.Notification, f notification.Filter) bool {
	if f.UserID == "" {
		return true
	}
	return !n.IsAdmin && (n.UserID == nil || *n.UserID == f.UserID)
}

func matchNotification(n notification.Notification, f notification.Filter) bool {
	if f.Search != "" && !query.Contains(n.Title, f.Search) && !query.Contains(n.Message, f.Search) {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Read != nil && n.Read() != *f.Read {
		return false
	}
	if f.IsAdmin != nil && n.IsAdmin != *f.IsAdmin {
		return false
	}
	return query.InRange(n.CreatedAt, f.From, f.To)
}

func (r *Notifications) List(_ context.Context, f notification.Filter, p query.Pagination) (query.Page[notification.Notification], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p = p.Normalize()
	var rows []notification.Notification
	var totalAll int64
	for _, n := range r.s.notifications {
		if !inNotificationScope(n, f) {
			continue
		}
		totalAll++
		if matchNotification(n, f) {
			rows = append(rows, n)
		}
	}
	sortDesc(rows, func(n notification.Notification) time.Time { return n.CreatedAt })
	return query.NewPage(query.Window(rows, p), int64(len(rows)), totalAll, p), nil
}

func (r *Notifications) Update(_ context.Context, n *notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[n.ID]; !ok {
		return apperr.NotFound("Notification")
	}
	n.UpdatedAt = r.s.tick()
	row := *n
	row.User = nil
	r.s.notifications[n.ID] = row
	return nil
}

func (r *Notifications) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[id]; !ok {
		return apperr.NotFound("Notification")
	}
	delete(r.s.notifications, id)
	return nil
}

func (r *Notifications) DeleteMany(_ context.Context, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.s.notifications[id]; ok {
			delete(r.s.notifications, id)
			n++
		}
	}
	return n, nil
}

func selected(n notification.Notification, sc notification.Scope) bool {
	if sc.IDs != nil {
		found := false
		for _, id := range sc.IDs {
			if id == n.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if sc.UserID != "" && (n.UserID == nil || *n.UserID != sc.UserID) {
		return false
	}
	if sc.IsAdmin != nil && n.IsAdmin != *sc.IsAdmin {
		return false
	}
	return !sc.Unread || !n.Read()
}

func (r *Notifications) MarkRead(_ context.Context, sc notification.Scope) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc.Unread = true
	var changed int64
	for id, n := range r.s.notifications {
		if !selected(n, sc) {
			continue
		}
		read := true
		n.IsRead = &read
		n.UpdatedAt = r.s.tick()
		r.s.notifications[id] = n
		changed++
	}
	return changed, nil
}

func (r *Notifications) Count(_ context.Context, sc notification.Scope) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, row := range r.s.notifications {
		if selected(row, sc) {
			n++
		}
	}
	return n, nil
}
