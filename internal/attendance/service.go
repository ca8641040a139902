package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/bulk"
	"attendance/internal/logging"
	"attendance/internal/metrics"
	"attendance/internal/notification"
	"attendance/internal/query"
	"attendance/internal/staff"
)

// DefaultLateCutoff is the local time of day from which a quick check-in
// counts as late.
const DefaultLateCutoff = 8 * time.Hour

// StaffDirectory is the part of the staff service attendance needs.
type StaffDirectory interface {
	Lookup(ctx context.Context, id string) (staff.Staff, error)
	ByUserID(ctx context.Context, userID string) (staff.Staff, error)
	All(ctx context.Context) ([]staff.Staff, error)
}

// Notifier stores notifications emitted as side effects.
type Notifier interface {
	Add(ctx context.Context, in notification.Input) (notification.Notification, error)
}

// Options configures Service. Zero values fall back to UTC, an 08:00
// cutoff and the wall clock.
type Options struct {
	Location   *time.Location
	LateCutoff time.Duration
	Now        func() time.Time
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Service coordinates check-ins, check-outs and their notifications.
type Service struct {
	repo     Repository
	staff    StaffDirectory
	notifier Notifier
	loc      *time.Location
	cutoff   time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, dir StaffDirectory, notifier Notifier, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LateCutoff <= 0 {
		opts.LateCutoff = DefaultLateCutoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		staff:    dir,
		notifier: notifier,
		loc:      opts.Location,
		cutoff:   opts.LateCutoff,
		now:      opts.Now,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// DayOf returns the calendar day of t in loc as a date key.
func DayOf(t time.Time, loc *time.Location) datatypes.Date {
	y, m, d := t.In(loc).Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// StatusAt derives the quick check-in status for t: Present strictly
// before the cutoff, Late from the cutoff on.
func StatusAt(t time.Time, loc *time.Location, cutoff time.Duration) Status {
	h, m, s := t.In(loc).Clock()
	sinceMidnight := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	if sinceMidnight < cutoff {
		return StatusPresent
	}
	return StatusLate
}

// scopeFilter narrows f to what caller may see: admins see every record,
// staff only records of their own profile. The from/to dates are pinned
// to local midnight in loc, the zone DayOf uses.
func scopeFilter(caller auth.Principal, f Filter, loc *time.Location) (Filter, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Filter{}, err
	}
	f.UserID = ""
	if !caller.IsAdmin() {
		f.UserID = caller.UserID
	}
	f.From = localMidnight(f.From, loc)
	f.To = localMidnight(f.To, loc)
	return f, nil
}

func localMidnight(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	out := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return &out
}

// List returns a filtered page, newest check-in first.
func (s *Service) List(ctx context.Context, caller auth.Principal, f Filter, p query.Pagination) (query.Page[Attendance], error) {
	f, err := scopeFilter(caller, f, s.loc)
	if err != nil {
		return query.Page[Attendance]{}, err
	}
	return s.repo.List(ctx, f, p.Normalize())
}

// Get returns one record visible to caller.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (Attendance, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Attendance{}, err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	if !caller.IsAdmin() && !ownedBy(a.Staff, caller.UserID) {
		return Attendance{}, apperr.NotFound("Attendance record")
	}
	return a, nil
}

// Mark records attendance with a supplied status, tagged with the caller
// as marker. Staff callers may only mark their own profile.
func (s *Service) Mark(ctx context.Context, caller auth.Principal, in MarkInput) (Attendance, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Attendance{}, err
	}
	return s.mark(ctx, caller, in, "manual")
}

func (s *Service) mark(ctx context.Context, caller auth.Principal, in MarkInput, source string) (Attendance, error) {
	if !in.Status.Valid() {
		return Attendance{}, apperr.Invalid("status", "Status must be Present, Late or Absent")
	}
	if in.CheckIn.IsZero() {
		return Attendance{}, apperr.Invalid("checkIn", "Check-in time is required")
	}
	if in.CheckOut != nil && in.CheckOut.Before(in.CheckIn) {
		return Attendance{}, apperr.Invalid("checkOut", "Check-out cannot be before check-in")
	}
	st, err := s.staff.Lookup(ctx, in.StaffID)
	if err != nil {
		return Attendance{}, err
	}
	if !caller.IsAdmin() && !ownedBy(&st, caller.UserID) {
		return Attendance{}, apperr.New(apperr.ErrForbidden, "You can only mark your own attendance")
	}
	markedBy := caller.UserID
	a := Attendance{
		StaffID:     st.ID,
		Status:      in.Status,
		CheckIn:     in.CheckIn,
		CheckInDate: DayOf(in.CheckIn, s.loc),
		CheckOut:    in.CheckOut,
		Notes:       trimmed(in.Notes),
		MarkedByID:  &markedBy,
	}
	if err := s.repo.Create(ctx, &a); err != nil {
		if errors.Is(err, ErrDuplicateDay) {
			s.metrics.DuplicateCheckIn()
			return Attendance{}, apperr.New(apperr.ErrConflict, "Attendance already marked for today")
		}
		return Attendance{}, fmt.Errorf("create attendance: %w", err)
	}
	a.Staff = &st
	s.metrics.AttendanceMarked(string(a.Status), source)
	s.log(ctx).InfoContext(ctx, "attendance marked", "attendance_id", a.ID, "staff_id", st.ID, "status", a.Status, "by", caller.UserID)
	s.notifyBoth(ctx, st, notification.TypeAttendance,
		"Attendance marked",
		fmt.Sprintf("Your attendance for %s was marked as %s.", s.dayLabel(a.CheckIn), a.Status),
		fmt.Sprintf("%s was marked %s for %s.", st.FullName(), a.Status, s.dayLabel(a.CheckIn)))
	return a, nil
}

// QuickCheckIn checks a staff member in now, deriving the status from the
// clock. Staff callers may only check themselves in.
func (s *Service) QuickCheckIn(ctx context.Context, caller auth.Principal, staffID string) (Attendance, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Attendance{}, err
	}
	st, err := s.staff.Lookup(ctx, staffID)
	if err != nil {
		return Attendance{}, err
	}
	if !caller.IsAdmin() && !ownedBy(&st, caller.UserID) {
		return Attendance{}, apperr.New(apperr.ErrForbidden, "You can only check yourself in")
	}
	now := s.now()
	a := Attendance{
		StaffID:     st.ID,
		Status:      StatusAt(now, s.loc, s.cutoff),
		CheckIn:     now,
		CheckInDate: DayOf(now, s.loc),
	}
	if a.Status == StatusLate {
		notes := "Late arrival"
		a.Notes = &notes
	}
	if err := s.repo.Create(ctx, &a); err != nil {
		if errors.Is(err, ErrDuplicateDay) {
			s.metrics.DuplicateCheckIn()
			return Attendance{}, apperr.New(apperr.ErrConflict, "Already checked in today")
		}
		return Attendance{}, fmt.Errorf("quick check-in: %w", err)
	}
	a.Staff = &st
	s.metrics.AttendanceMarked(string(a.Status), "quick")
	s.log(ctx).InfoContext(ctx, "quick check-in", "attendance_id", a.ID, "staff_id", st.ID, "status", a.Status)
	s.notifyBoth(ctx, st, notification.TypeAttendance,
		"Checked in",
		fmt.Sprintf("You checked in at %s (%s).", s.timeLabel(now), a.Status),
		fmt.Sprintf("%s checked in at %s (%s).", st.FullName(), s.timeLabel(now), a.Status))
	return a, nil
}

// Update applies a partial update. Admin only.
func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, in UpdateInput) (Attendance, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Attendance{}, err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return Attendance{}, apperr.Invalid("status", "Status must be Present, Late or Absent")
		}
		a.Status = *in.Status
	}
	if in.CheckIn != nil {
		a.CheckIn = *in.CheckIn
		a.CheckInDate = DayOf(a.CheckIn, s.loc)
	}
	if in.CheckOut.Set {
		a.CheckOut = in.CheckOut.Time
	}
	if in.Notes != nil {
		a.Notes = trimmed(in.Notes)
	}
	if a.CheckOut != nil && a.CheckOut.Before(a.CheckIn) {
		return Attendance{}, apperr.Invalid("checkOut", "Check-out cannot be before check-in")
	}
	st := a.Staff
	a.Staff = nil
	if err := s.repo.Update(ctx, &a); err != nil {
		if errors.Is(err, ErrDuplicateDay) {
			return Attendance{}, apperr.New(apperr.ErrConflict, "Attendance already marked for that day")
		}
		return Attendance{}, fmt.Errorf("update attendance: %w", err)
	}
	a.Staff = st
	if st != nil {
		s.notifyBoth(ctx, *st, notification.TypeUpdate,
			"Attendance updated",
			fmt.Sprintf("Your attendance for %s was updated.", s.dayLabel(a.CheckIn)),
			fmt.Sprintf("Attendance of %s for %s was updated.", st.FullName(), s.dayLabel(a.CheckIn)))
	}
	return a, nil
}

// CheckOut sets the check-out time of a record, defaulting to now. Any
// authenticated caller may do it.
func (s *Service) CheckOut(ctx context.Context, caller auth.Principal, id string, at *time.Time) (Attendance, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return Attendance{}, err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	out := s.now()
	if at != nil {
		out = *at
	}
	if out.Before(a.CheckIn) {
		return Attendance{}, apperr.Invalid("checkOut", "Check-out cannot be before check-in")
	}
	a.CheckOut = &out
	st := a.Staff
	a.Staff = nil
	if err := s.repo.Update(ctx, &a); err != nil {
		return Attendance{}, fmt.Errorf("check out: %w", err)
	}
	a.Staff = st
	if st != nil && st.UserID != nil {
		s.notify(ctx, notification.Input{
			UserID:  st.UserID,
			Type:    notification.TypeCheckOut,
			Title:   "Checked out",
			Message: fmt.Sprintf("You checked out at %s.", s.timeLabel(out)),
		})
	}
	return a, nil
}

// Delete hard-deletes a record. Admin only.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id string) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log(ctx).InfoContext(ctx, "attendance deleted", "attendance_id", id, "by", caller.UserID)
	if a.Staff != nil {
		s.notifyBoth(ctx, *a.Staff, notification.TypeDelete,
			"Attendance removed",
			fmt.Sprintf("Your attendance record for %s was removed.", s.dayLabel(a.CheckIn)),
			fmt.Sprintf("Attendance of %s for %s was removed.", a.Staff.FullName(), s.dayLabel(a.CheckIn)))
	}
	return nil
}

// DeleteMany deletes each id in turn. A failure is recorded and the batch
// continues; nothing is rolled back.
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

// BulkMark marks each input in turn with the same semantics as Mark.
func (s *Service) BulkMark(ctx context.Context, caller auth.Principal, inputs []MarkInput) (bulk.Result, error) {
	if err := caller.RequireAdmin(); err != nil {
		return bulk.Result{}, err
	}
	var res bulk.Result
	for _, in := range inputs {
		_, err := s.mark(ctx, caller, in, "bulk")
		res.Record(in.StaffID, err)
	}
	return res, nil
}

// Staff lists the profiles caller may mark: every profile for admins, the
// caller's own for staff.
func (s *Service) Staff(ctx context.Context, caller auth.Principal) ([]staff.Staff, error) {
	if err := caller.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return s.staff.All(ctx)
	}
	st, err := s.staff.ByUserID(ctx, caller.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return []staff.Staff{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []staff.Staff{st}, nil
}

// StaffMembers is Staff plus each member's state for today. It issues two
// lookups per member.
func (s *Service) StaffMembers(ctx context.Context, caller auth.Principal) ([]Member, error) {
	list, err := s.Staff(ctx, caller)
	if err != nil {
		return nil, err
	}
	today := DayOf(s.now(), s.loc)
	out := make([]Member, 0, len(list))
	for _, st := range list {
		marked, err := s.repo.ExistsOn(ctx, st.ID, today)
		if err != nil {
			return nil, err
		}
		last, err := s.repo.LastCheckIn(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Staff: st, MarkedToday: marked, LastCheckIn: last})
	}
	return out, nil
}

// notifyBoth sends one notification to the staff member's account, if any,
// and one to the admin audience.
func (s *Service) notifyBoth(ctx context.Context, st staff.Staff, typ, title, userMsg, adminMsg string) {
	if st.UserID != nil {
		s.notify(ctx, notification.Input{UserID: st.UserID, Type: typ, Title: title, Message: userMsg})
	}
	s.notify(ctx, notification.Input{Type: typ, Title: title, Message: adminMsg, IsAdmin: true})
}

func (s *Service) notify(ctx context.Context, in notification.Input) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Add(ctx, in); err != nil {
		s.log(ctx).WarnContext(ctx, "notification failed", "type", in.Type, "error", err)
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *Service) dayLabel(t time.Time) string { return t.In(s.loc).Format("Jan 2, 2006") }

func (s *Service) timeLabel(t time.Time) string { return t.In(s.loc).Format("15:04") }

func ownedBy(st *staff.Staff, userID string) bool {
	return st != nil && st.UserID != nil && *st.UserID == userID
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
