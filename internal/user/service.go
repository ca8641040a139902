package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/bulk"
	"attendance/internal/query"
)

// Service implements the user directory.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// List returns a filtered page of users. Admin only.
func (s *Service) List(ctx context.Context, caller auth.Principal, f Filter, p query.Pagination) (query.Page[User], error) {
	if err := caller.RequireAdmin(); err != nil {
		return query.Page[User]{}, err
	}
	return s.repo.List(ctx, f, p.Normalize())
}

// Get returns a user. Admins may read anyone, everybody else only themselves.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (User, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return User{}, err
	}
	if !caller.IsAdmin() && caller.UserID != id {
		return User{}, apperr.New(apperr.ErrForbidden, "You can only view your own account")
	}
	return s.repo.Get(ctx, id)
}

// Create adds a user with a hashed password. Admin only.
func (s *Service) Create(ctx context.Context, caller auth.Principal, nu NewUser) (User, error) {
	if err := caller.RequireAdmin(); err != nil {
		return User{}, err
	}
	return s.create(ctx, nu)
}

func (s *Service) create(ctx context.Context, nu NewUser) (User, error) {
	u, err := Build(nu)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Build validates nu and returns the User to insert, password hashed.
// Staff creation uses it to insert the user inside its own transaction.
func Build(nu NewUser) (User, error) {
	name := strings.TrimSpace(nu.Name)
	if name == "" {
		return User{}, apperr.Invalid("name", "Name is required")
	}
	email := NormalizeEmail(nu.Email)
	if email == "" {
		return User{}, apperr.Invalid("email", "Email is required")
	}
	role := nu.Role
	if role == "" {
		role = auth.RoleStaff
	}
	if !role.Valid() {
		return User{}, apperr.Invalid("role", "Role must be Admin or Staff")
	}
	active := true
	if nu.IsActive != nil {
		active = *nu.IsActive
	}
	u := User{
		Name:            name,
		Email:           email,
		Role:            role,
		IsActive:        active,
		IsEmailVerified: nu.IsEmailVerified,
	}
	if err := u.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return u, nil
}

// Register is public self sign-up. New accounts always get the Staff role.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	return s.create(ctx, NewUser{Name: name, Email: email, Password: password, Role: auth.RoleStaff})
}

// Update applies an admin partial update.
func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, uu UpdateUser) (User, error) {
	if err := caller.RequireAdmin(); err != nil {
		return User{}, err
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if uu.Name != nil {
		if strings.TrimSpace(*uu.Name) == "" {
			return User{}, apperr.Invalid("name", "Name is required")
		}
		u.Name = strings.TrimSpace(*uu.Name)
	}
	if uu.Email != nil {
		u.Email = NormalizeEmail(*uu.Email)
	}
	if uu.Role != nil {
		if !uu.Role.Valid() {
			return User{}, apperr.Invalid("role", "Role must be Admin or Staff")
		}
		u.Role = *uu.Role
	}
	if uu.IsActive != nil {
		u.IsActive = *uu.IsActive
	}
	if uu.IsEmailVerified != nil {
		u.IsEmailVerified = *uu.IsEmailVerified
	}
	if uu.Image != nil {
		u.Image = emptyToNil(*uu.Image)
	}
	if uu.Password != nil {
		if err := u.SetPassword(*uu.Password); err != nil {
			return User{}, err
		}
	}
	if err := s.repo.Update(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateProfile lets the caller edit their own account. Changing the
// password requires the current one.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Principal, up UpdateProfile) (User, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return User{}, err
	}
	u, err := s.repo.Get(ctx, caller.UserID)
	if err != nil {
		return User{}, err
	}
	if up.Name != nil {
		if strings.TrimSpace(*up.Name) == "" {
			return User{}, apperr.Invalid("name", "Name is required")
		}
		u.Name = strings.TrimSpace(*up.Name)
	}
	if up.Image != nil {
		u.Image = emptyToNil(*up.Image)
	}
	if up.NewPassword != nil {
		if !u.CheckPassword(up.CurrentPassword) {
			return User{}, apperr.Invalid("currentPassword", "Current password is incorrect")
		}
		if err := u.SetPassword(*up.NewPassword); err != nil {
			return User{}, err
		}
	}
	if err := s.repo.Update(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// SetImage stores the avatar URL for the caller.
func (s *Service) SetImage(ctx context.Context, caller auth.Principal, url string) (User, error) {
	return s.UpdateProfile(ctx, caller, UpdateProfile{Image: &url})
}

// Delete removes a user. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id string) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}
	if id == caller.UserID {
		return apperr.New(apperr.ErrConflict, "You cannot delete your own account")
	}
	return s.repo.Delete(ctx, id)
}

// DeleteMany deletes each id in turn and tallies the outcome. It is not
// atomic.
func (s *Service) DeleteMany(ctx context.Context, caller auth.Principal, ids []string) (bulk.Result, error) {
	if err := caller.RequireAdmin(); err != nil {
		return bulk.Result{}, err
	}
	var res bulk.Result
	for _, id := range ids {
		res.Record(id, s.Delete(ctx, caller, id))
	}
	return res, nil
}

// ToggleStatus flips isActive. The login check refuses inactive users.
func (s *Service) ToggleStatus(ctx context.Context, caller auth.Principal, id string) (User, error) {
	if err := caller.RequireAdmin(); err != nil {
		return User{}, err
	}
	if id == caller.UserID {
		return User{}, apperr.New(apperr.ErrConflict, "You cannot deactivate your own account")
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	u.IsActive = !u.IsActive
	if err := s.repo.Update(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate checks credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return User{}, errBadCredentials
		}
		return User{}, err
	}
	if !u.CheckPassword(password) {
		return User{}, errBadCredentials
	}
	if !u.IsActive {
		return User{}, apperr.New(apperr.ErrForbidden, "Your account has been deactivated")
	}
	now := s.now().UTC()
	u.LastLogin = &now
	if err := s.repo.Update(ctx, &u); err != nil {
		s.logger.WarnContext(ctx, "record last login failed", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// Recipients resolves the addresses of a bulk email: the listed users, or
// every active staff user when ids is empty.
func (s *Service) Recipients(ctx context.Context, caller auth.Principal, ids []string) ([]User, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return s.repo.FindActiveByRole(ctx, auth.RoleStaff)
	}
	return s.repo.FindByIDs(ctx, ids)
}

// EnsureAdmin seeds an Admin account when none exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	n, err := s.repo.CountByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.create(ctx, NewUser{Name: name, Email: email, Password: password, Role: auth.RoleAdmin, IsEmailVerified: true}); err != nil {
		return false, err
	}
	return true, nil
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
