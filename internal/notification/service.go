package notification

import (
	"context"
	"log/slog"
	"strings"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/metrics"
	"attendance/internal/query"
)

// Options carries the optional collaborators of Service.
type Options struct {
	Cache   CountCache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Service implements notification reads, writes and read-state changes.
type Service struct {
	repo    Repository
	cache   CountCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{repo: repo, cache: opts.Cache, metrics: opts.Metrics, logger: opts.Logger}
}

// scopeFilter narrows f to what caller may list. Admins see everything;
// staff see their own non-admin notifications and non-admin broadcasts.
func scopeFilter(caller auth.Principal, f Filter) (Filter, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Filter{}, err
	}
	f.UserID = ""
	if !caller.IsAdmin() {
		f.UserID = caller.UserID
		f.IsAdmin = nil
	}
	return f, nil
}

func visible(caller auth.Principal, n Notification) bool {
	if caller.IsAdmin() {
		return true
	}
	return !n.IsAdmin && (n.UserID == nil || *n.UserID == caller.UserID)
}

// owns reports whether caller may change n. Staff change only rows
// addressed to them; broadcasts are admin-managed.
func owns(caller auth.Principal, n Notification) bool {
	return caller.IsAdmin() || (n.UserID != nil && *n.UserID == caller.UserID)
}

var errNotOwner = apperr.New(apperr.ErrForbidden, "You can only change your own notifications")

// List returns a filtered page of notifications visible to caller.
func (s *Service) List(ctx context.Context, caller auth.Principal, f Filter, p query.Pagination) (query.Page[Notification], error) {
	f, err := scopeFilter(caller, f)
	if err != nil {
		return query.Page[Notification]{}, err
	}
	return s.repo.List(ctx, f, p.Normalize())
}

// Get returns one notification.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (Notification, error) {
	return s.get(ctx, caller, id, false)
}

// GetWithUser returns one notification with its recipient expanded.
func (s *Service) GetWithUser(ctx context.Context, caller auth.Principal, id string) (Notification, error) {
	return s.get(ctx, caller, id, true)
}

func (s *Service) get(ctx context.Context, caller auth.Principal, id string, withUser bool) (Notification, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Notification{}, err
	}
	n, err := s.repo.Get(ctx, id, withUser)
	if err != nil {
		return Notification{}, err
	}
	if !visible(caller, n) {
		return Notification{}, apperr.NotFound("Notification")
	}
	return n, nil
}

// Add stores a notification emitted by another service. New rows are
// explicitly unread.
func (s *Service) Add(ctx context.Context, in Input) (Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Type = strings.TrimSpace(in.Type)
	if in.Title == "" {
		return Notification{}, apperr.Invalid("title", "Title is required")
	}
	if in.Type == "" {
		in.Type = TypeGeneral
	}
	unread := false
	n := Notification{
		UserID:  in.UserID,
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
		IsRead:  &unread,
		IsAdmin: in.IsAdmin,
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return Notification{}, err
	}
	s.invalidate(ctx, n.IsAdmin)
	audience := "user"
	if n.IsAdmin {
		audience = "admin"
	} else if n.UserID == nil {
		audience = "broadcast"
	}
	s.metrics.NotificationCreated(audience)
	return n, nil
}

// Create is the admin-facing Add.
func (s *Service) Create(ctx context.Context, caller auth.Principal, in Input) (Notification, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Notification{}, err
	}
	return s.Add(ctx, in)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, u Update) (Notification, error) {
	n, err := s.Get(ctx, caller, id)
	if err != nil {
		return Notification{}, err
	}
	if !owns(caller, n) {
		return Notification{}, errNotOwner
	}
	if (u.Title != nil || u.Message != nil || u.Type != nil) && !caller.IsAdmin() {
		return Notification{}, apperr.New(apperr.ErrForbidden, "Only admins can edit notification content")
	}
	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return Notification{}, apperr.Invalid("title", "Title is required")
		}
		n.Title = strings.TrimSpace(*u.Title)
	}
	if u.Message != nil {
		n.Message = *u.Message
	}
	if u.Type != nil {
		n.Type = strings.TrimSpace(*u.Type)
	}
	if u.IsRead != nil {
		read := *u.IsRead
		n.IsRead = &read
	}
	if err := s.repo.Update(ctx, &n); err != nil {
		return Notification{}, err
	}
	s.invalidate(ctx, n.IsAdmin)
	return n, nil
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id string) error {
	n, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if !owns(caller, n) {
		return errNotOwner
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, n.IsAdmin)
	return nil
}

// DeleteMany removes the listed notifications the caller can see and
// returns how many were deleted.
func (s *Service) DeleteMany(ctx context.Context, caller auth.Principal, ids []string) (int64, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return 0, err
	}
	if !caller.IsAdmin() {
		own := make([]string, 0, len(ids))
		for _, id := range ids {
			if n, err := s.Get(ctx, caller, id); err == nil && owns(caller, n) {
				own = append(own, id)
			}
		}
		ids = own
	}
	n, err := s.repo.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, true)
	return n, nil
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, caller auth.Principal, id string) (Notification, error) {
	read := true
	return s.Update(ctx, caller, id, Update{IsRead: &read})
}

// MarkManyRead marks the listed notifications read, but only rows with
// isAdmin=true are touched; other ids are skipped without being reported.
// It returns the number of rows changed.
func (s *Service) MarkManyRead(ctx context.Context, caller auth.Principal, ids []string) (int64, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return 0, err
	}
	if ids == nil {
		ids = []string{}
	}
	adminOnly := true
	n, err := s.repo.MarkRead(ctx, Scope{IDs: ids, IsAdmin: &adminOnly})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, true)
	return n, nil
}

// MarkAllRead marks every admin notification read for an Admin, and the
// caller's own non-admin notifications for Staff.
func (s *Service) MarkAllRead(ctx context.Context, caller auth.Principal) (int64, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return 0, err
	}
	scope := Scope{}
	if caller.IsAdmin() {
		adminOnly := true
		scope.IsAdmin = &adminOnly
	} else {
		notAdmin := false
		scope.IsAdmin = &notAdmin
		scope.UserID = caller.UserID
	}
	n, err := s.repo.MarkRead(ctx, scope)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, caller.IsAdmin())
	return n, nil
}

// UnreadCount returns the number of unread admin notifications. It backs
// the admin bell badge and ignores the caller's role.
func (s *Service) UnreadCount(ctx context.Context, caller auth.Principal) (int64, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return 0, err
	}
	version := int64(-1)
	if s.cache != nil {
		n, v, ok := s.cache.Get(ctx)
		if ok {
			return n, nil
		}
		version = v
	}
	adminOnly := true
	n, err := s.repo.Count(ctx, Scope{IsAdmin: &adminOnly, Unread: true})
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, version, n)
	}
	return n, nil
}

// Forget drops the cached unread count. Callers that remove notifications
// indirectly, such as deleting a user whose rows cascade, call it after
// the write.
func (s *Service) Forget(ctx context.Context) {
	s.invalidate(ctx, true)
}

func (s *Service) invalidate(ctx context.Context, admin bool) {
	if s.cache != nil && admin {
		s.cache.Invalidate(ctx)
	}
}
