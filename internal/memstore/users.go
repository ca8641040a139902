package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/query"
	"attendance/internal/user"
)

const errEmailTaken = "A user with this email already exists"

// Users implements user.Repository.
type Users struct{ s *Store }

var _ user.Repository = (*Users)(nil)

// emailTaken reports whether another user already has email. Callers hold
// the lock.
func (r *Users) emailTaken(email, exceptID string) bool {
	for id, u := range r.s.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (r *Users) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.create(u)
}

// create inserts u. Callers hold the lock.
func (r *Users) create(u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = user.NormalizeEmail(u.Email)
	if r.emailTaken(u.Email, "") {
		return apperr.New(apperr.ErrConflict, errEmailTaken)
	}
	now := r.s.tick()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) Get(_ context.Context, id string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, apperr.NotFound("User")
	}
	return u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = user.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, apperr.NotFound("User")
}

func matchUser(u user.User, f user.Filter) bool {
	if f.Search != "" && !query.Contains(u.Name, f.Search) && !query.Contains(u.Email, f.Search) {
		return false
	}
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Verified != nil && u.IsEmailVerified != *f.Verified {
		return false
	}
	if f.Active != nil && u.IsActive != *f.Active {
		return false
	}
	return query.InRange(u.CreatedAt, f.JoinedFrom, f.JoinedTo)
}

func (r *Users) List(_ context.Context, f user.Filter, p query.Pagination) (query.Page[user.User], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p = p.Normalize()
	var rows []user.User
	for _, u := range r.s.users {
		if matchUser(u, f) {
			rows = append(rows, u)
		}
	}
	sortDesc(rows, func(u user.User) time.Time { return u.CreatedAt })
	return query.NewPage(query.Window(rows, p), int64(len(rows)), int64(len(r.s.users)), p), nil
}

func (r *Users) FindByIDs(_ context.Context, ids []string) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []user.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *Users) FindActiveByRole(_ context.Context, role auth.Role) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []user.User
	for _, u := range r.s.users {
		if u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Users) CountByRole(_ context.Context, role auth.Role) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *Users) Update(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return apperr.NotFound("User")
	}
	u.Email = user.NormalizeEmail(u.Email)
	if r.emailTaken(u.Email, u.ID) {
		return apperr.New(apperr.ErrConflict, errEmailTaken)
	}
	u.UpdatedAt = r.s.tick()
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return apperr.NotFound("User")
	}
	r.s.deleteUser(id)
	return nil
}
