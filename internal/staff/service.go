package staff

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/bulk"
	"attendance/internal/query"
	"attendance/internal/user"
)

// Service implements the staff directory.
type Service struct {
	repo   Repository
	users  user.Repository
	logger *slog.Logger
}

// NewService creates a service. users is needed to flip the linked
// account's status.
func NewService(repo Repository, users user.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, users: users, logger: logger}
}

// scopeFilter narrows f to what caller may see: admins see every profile,
// staff only their own.
func scopeFilter(caller auth.Principal, f Filter) (Filter, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Filter{}, err
	}
	f.UserID = ""
	if !caller.IsAdmin() {
		f.UserID = caller.UserID
	}
	return f, nil
}

// List returns a filtered page of profiles visible to caller.
func (s *Service) List(ctx context.Context, caller auth.Principal, f Filter, p query.Pagination) (query.Page[Staff], error) {
	f, err := scopeFilter(caller, f)
	if err != nil {
		return query.Page[Staff]{}, err
	}
	return s.repo.List(ctx, f, p.Normalize())
}

// Get returns one profile visible to caller.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (Staff, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Staff{}, err
	}
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	if !caller.IsAdmin() && (st.UserID == nil || *st.UserID != caller.UserID) {
		return Staff{}, apperr.NotFound("Staff")
	}
	return st, nil
}

// Lookup returns a profile without caller scoping, for internal callers.
func (s *Service) Lookup(ctx context.Context, id string) (Staff, error) {
	return s.repo.Get(ctx, id)
}

// ByUserID returns the profile linked to a login account.
func (s *Service) ByUserID(ctx context.Context, userID string) (Staff, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// All returns every profile, ordered by name.
func (s *Service) All(ctx context.Context) ([]Staff, error) {
	return s.repo.All(ctx)
}

// Departments lists the distinct departments in use.
func (s *Service) Departments(ctx context.Context, caller auth.Principal) ([]string, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return nil, err
	}
	return s.repo.Departments(ctx)
}

// Create inserts a profile and its login account in one transaction.
func (s *Service) Create(ctx context.Context, caller auth.Principal, ns NewStaff) (Staff, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Staff{}, err
	}
	st := Staff{
		FirstName:  strings.TrimSpace(ns.FirstName),
		MiddleName: trimmed(ns.MiddleName),
		LastName:   strings.TrimSpace(ns.LastName),
		Department: strings.TrimSpace(ns.Department),
		Phone:      trimmed(ns.Phone),
	}
	if err := validate(st); err != nil {
		return Staff{}, err
	}
	u, err := user.Build(user.NewUser{
		Name:     st.FullName(),
		Email:    ns.Email,
		Password: ns.Password,
		Role:     auth.RoleStaff,
	})
	if err != nil {
		return Staff{}, err
	}
	if err := s.repo.CreateWithUser(ctx, &u, &st); err != nil {
		return Staff{}, err
	}
	s.logger.InfoContext(ctx, "staff created", "staff_id", st.ID, "user_id", u.ID, "by", caller.UserID)
	return st, nil
}

// Update applies a partial update. Admin only.
func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, us UpdateStaff) (Staff, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Staff{}, err
	}
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	if us.FirstName != nil {
		st.FirstName = strings.TrimSpace(*us.FirstName)
	}
	if us.MiddleName != nil {
		st.MiddleName = trimmed(us.MiddleName)
	}
	if us.LastName != nil {
		st.LastName = strings.TrimSpace(*us.LastName)
	}
	if us.Department != nil {
		st.Department = strings.TrimSpace(*us.Department)
	}
	if us.Phone != nil {
		st.Phone = trimmed(us.Phone)
	}
	if err := validate(st); err != nil {
		return Staff{}, err
	}
	if err := s.repo.Update(ctx, &st); err != nil {
		return Staff{}, err
	}
	return st, nil
}

// Delete removes a profile together with its attendance and login account.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id string) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if st.UserID != nil && *st.UserID == caller.UserID {
		return apperr.New(apperr.ErrConflict, "You cannot delete your own staff profile")
	}
	return s.repo.Delete(ctx, id)
}

// DeleteMany deletes each id in turn and tallies the outcome.
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

// ToggleStatus flips isActive on the profile's login account.
func (s *Service) ToggleStatus(ctx context.Context, caller auth.Principal, id string) (Staff, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Staff{}, err
	}
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	if st.UserID == nil {
		return Staff{}, apperr.New(apperr.ErrConflict, "Staff member has no linked account")
	}
	u, err := s.users.Get(ctx, *st.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Staff{}, apperr.New(apperr.ErrConflict, "Staff member has no linked account")
		}
		return Staff{}, err
	}
	u.IsActive = !u.IsActive
	if err := s.users.Update(ctx, &u); err != nil {
		return Staff{}, err
	}
	st.User = &u
	return st, nil
}

func validate(st Staff) error {
	switch {
	case st.FirstName == "":
		return apperr.Invalid("firstName", "First name is required")
	case st.LastName == "":
		return apperr.Invalid("lastName", "Last name is required")
	case st.Department == "":
		return apperr.Invalid("department", "Department is required")
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
