package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/apperr"
	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/logging"
	"attendance/internal/memstore"
	"attendance/internal/notification"
	"attendance/internal/query"
	"attendance/internal/staff"
	"attendance/internal/user"
)

var lagos = time.FixedZone("WAT", 3600)

type fixture struct {
	store  *memstore.Store
	svc    *attendance.Service
	notes  *notification.Service
	staff  *staff.Service
	now    time.Time
	admin  auth.Principal
	jane   staff.Staff
	janeAs auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memstore.New(), now: time.Date(2024, 3, 4, 7, 55, 0, 0, lagos)}
	f.store.SetClock(func() time.Time { return f.now })

	logger := logging.Discard()
	f.notes = notification.NewService(f.store.Notifications(), notification.Options{Logger: logger})
	f.staff = staff.NewService(f.store.Staff(), f.store.Users(), logger)
	f.svc = attendance.NewService(f.store.Attendance(), f.staff, f.notes, attendance.Options{
		Location: lagos,
		Now:      func() time.Time { return f.now },
		Logger:   logger,
	})

	admin := user.User{Name: "Ada Admin", Email: "admin@example.com", Role: auth.RoleAdmin, IsActive: true}
	require.NoError(t, f.store.Users().Create(ctx, &admin))
	f.admin = auth.Principal{UserID: admin.ID, Role: auth.RoleAdmin}

	f.jane = f.addStaff(t, "Jane", "Doe", "Nursing", "jane@example.com")
	f.janeAs = auth.Principal{UserID: *f.jane.UserID, Role: auth.RoleStaff}
	return f
}

func (f *fixture) addStaff(t *testing.T, first, last, dept, email string) staff.Staff {
	t.Helper()
	u := user.User{Name: first + " " + last, Email: email, Role: auth.RoleStaff, IsActive: true}
	st := staff.Staff{FirstName: first, LastName: last, Department: dept}
	require.NoError(t, f.store.Staff().CreateWithUser(context.Background(), &u, &st))
	return st
}

func (f *fixture) notificationsOfType(t *testing.T, typ string) []notification.Notification {
	t.Helper()
	page, err := f.notes.List(context.Background(), f.admin, notification.Filter{Type: typ}, query.Pagination{Limit: 100})
	require.NoError(t, err)
	return page.Items
}

func TestQuickCheckInJaneDoe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, a.Status)
	assert.Nil(t, a.CheckOut)
	assert.Nil(t, a.Notes)
	assert.Nil(t, a.MarkedByID)
	assert.Equal(t, attendance.StateCheckedIn, a.State())

	_, err = f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "Already checked in today", apperr.Message(err))

	sent := f.notificationsOfType(t, notification.TypeAttendance)
	require.Len(t, sent, 2)
}

func TestQuickCheckInCutoff(t *testing.T) {
	cases := []struct {
		name   string
		at     time.Time
		status attendance.Status
		notes  string
	}{
		{"just before cutoff", time.Date(2024, 3, 4, 7, 59, 59, 0, lagos), attendance.StatusPresent, ""},
		{"at cutoff", time.Date(2024, 3, 4, 8, 0, 0, 0, lagos), attendance.StatusLate, "Late arrival"},
		{"mid morning", time.Date(2024, 3, 4, 9, 30, 0, 0, lagos), attendance.StatusLate, "Late arrival"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.now = tc.at
			a, err := f.svc.QuickCheckIn(context.Background(), f.janeAs, f.jane.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.status, a.Status)
			if tc.notes == "" {
				assert.Nil(t, a.Notes)
			} else {
				require.NotNil(t, a.Notes)
				assert.Equal(t, tc.notes, *a.Notes)
			}
		})
	}
}

func TestQuickCheckInOnlyForSelf(t *testing.T) {
	f := newFixture(t)
	john := f.addStaff(t, "John", "Roe", "Kitchen", "john@example.com")

	_, err := f.svc.QuickCheckIn(context.Background(), f.janeAs, john.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.QuickCheckIn(context.Background(), f.admin, john.ID)
	assert.NoError(t, err)
}

func TestMarkOnlyForSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.addStaff(t, "John", "Roe", "Kitchen", "john@example.com")
	johnAs := auth.Principal{UserID: *john.UserID, Role: auth.RoleStaff}

	_, err := f.svc.Mark(ctx, f.janeAs, attendance.MarkInput{StaffID: john.ID, Status: attendance.StatusAbsent, CheckIn: f.now})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.Equal(t, "You can only mark your own attendance", apperr.Message(err))

	// John's day is still free.
	a, err := f.svc.QuickCheckIn(ctx, johnAs, john.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, a.Status)

	a, err = f.svc.Mark(ctx, f.janeAs, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: f.now})
	require.NoError(t, err)
	assert.Equal(t, f.jane.ID, a.StaffID)
}

func TestConcurrentQuickCheckInsProduceOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, conflicts int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, apperr.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, conflicts)

	page, err := f.svc.List(ctx, f.admin, attendance.Filter{StaffID: f.jane.ID}, query.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestMarkSameDayWindowUsesLocalMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mark := func(at time.Time) error {
		_, err := f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: at})
		return err
	}

	// Both fall on the same UTC day but on different local days.
	require.NoError(t, mark(time.Date(2024, 3, 4, 23, 30, 0, 0, lagos)))
	require.NoError(t, mark(time.Date(2024, 3, 5, 0, 30, 0, 0, lagos)))

	err := mark(time.Date(2024, 3, 5, 17, 0, 0, 0, lagos))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "Attendance already marked for today", apperr.Message(err))
}

func TestMarkRecordsMarker(t *testing.T) {
	f := newFixture(t)
	notes := "  covered the night shift "
	a, err := f.svc.Mark(context.Background(), f.admin, attendance.MarkInput{
		StaffID: f.jane.ID,
		Status:  attendance.StatusAbsent,
		CheckIn: f.now,
		Notes:   &notes,
	})
	require.NoError(t, err)
	require.NotNil(t, a.MarkedByID)
	assert.Equal(t, f.admin.UserID, *a.MarkedByID)
	require.NotNil(t, a.Notes)
	assert.Equal(t, "covered the night shift", *a.Notes)

	sent := f.notificationsOfType(t, notification.TypeAttendance)
	require.Len(t, sent, 2)
}

func TestMarkErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Mark(ctx, auth.Principal{}, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: f.now})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	_, err = f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: "1c0e3c39-5d2b-4bd2-9d0f-8f3e8f0c9a11", Status: attendance.StatusPresent, CheckIn: f.now})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "Staff not found", apperr.Message(err))

	_, err = f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: f.jane.ID, Status: "Sick", CheckIn: f.now})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	early := f.now.Add(-time.Hour)
	_, err = f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: f.now, CheckOut: &early})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCheckOutAndClearViaUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
	require.NoError(t, err)

	f.now = f.now.Add(9 * time.Hour)
	a, err = f.svc.CheckOut(ctx, f.janeAs, a.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, a.CheckOut)
	assert.True(t, a.CheckOut.Equal(f.now))
	assert.Equal(t, attendance.StateCheckedOut, a.State())
	assert.Len(t, f.notificationsOfType(t, notification.TypeCheckOut), 1)

	_, err = f.svc.Update(ctx, f.janeAs, a.ID, attendance.UpdateInput{CheckOut: attendance.NullableTime{Set: true}})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	late := attendance.StatusLate
	a, err = f.svc.Update(ctx, f.admin, a.ID, attendance.UpdateInput{Status: &late, CheckOut: attendance.NullableTime{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, a.CheckOut)
	assert.Equal(t, attendance.StatusLate, a.Status)
	assert.Equal(t, attendance.StateCheckedIn, a.State())
	assert.Len(t, f.notificationsOfType(t, notification.TypeUpdate), 2)
}

func TestCheckOutErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckOut(ctx, f.admin, "missing", nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	a, err := f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
	require.NoError(t, err)
	before := a.CheckIn.Add(-time.Minute)
	_, err = f.svc.CheckOut(ctx, f.admin, a.ID, &before)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUpdateMovingCheckInOntoTakenDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: f.now})
	require.NoError(t, err)
	second, err := f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: f.now.AddDate(0, 0, 1)})
	require.NoError(t, err)

	moved := first.CheckIn.Add(2 * time.Hour)
	_, err = f.svc.Update(ctx, f.admin, second.ID, attendance.UpdateInput{CheckIn: &moved})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestDeleteNotifiesUserAndAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.admin, a.ID))

	sent := f.notificationsOfType(t, notification.TypeDelete)
	require.Len(t, sent, 2)
	var toUser, toAdmins int
	for _, n := range sent {
		if n.IsAdmin {
			toAdmins++
			assert.Nil(t, n.UserID)
			continue
		}
		require.NotNil(t, n.UserID)
		assert.Equal(t, *f.jane.UserID, *n.UserID)
		toUser++
	}
	assert.Equal(t, 1, toUser)
	assert.Equal(t, 1, toAdmins)

	err = f.svc.Delete(ctx, f.janeAs, a.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestDeleteManyTalliesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
	require.NoError(t, err)

	res, err := f.svc.DeleteMany(ctx, f.admin, []string{a.ID, "2b1f9a7e-0000-4000-8000-000000000000"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "Deleted attendance: 1 successful, 1 failed", res.Summary("Deleted attendance"))
	require.Len(t, res.Items, 2)
	assert.True(t, res.Items[0].Success)
	assert.False(t, res.Items[1].Success)
	assert.Equal(t, "Attendance record not found", res.Items[1].Message)
}

func TestBulkMarkContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	john := f.addStaff(t, "John", "Roe", "Kitchen", "john@example.com")

	res, err := f.svc.BulkMark(context.Background(), f.admin, []attendance.MarkInput{
		{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: f.now},
		{StaffID: f.jane.ID, Status: attendance.StatusLate, CheckIn: f.now},
		{StaffID: john.ID, Status: attendance.StatusAbsent, CheckIn: f.now},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	_, err = f.svc.BulkMark(context.Background(), f.janeAs, nil)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestListScopingAndPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.addStaff(t, "John", "Roe", "Kitchen", "john@example.com")

	for d := 0; d < 4; d++ {
		day := f.now.AddDate(0, 0, d)
		_, err := f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: day})
		require.NoError(t, err)
		_, err = f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: john.ID, Status: attendance.StatusLate, CheckIn: day})
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, f.admin, attendance.Filter{Search: "kitch"}, query.Pagination{Limit: 3, Skip: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	assert.EqualValues(t, 8, page.TotalAll)
	assert.Len(t, page.Items, 2)
	assert.LessOrEqual(t, int64(page.Skip+len(page.Items)), page.Total)
	assert.LessOrEqual(t, page.Total, page.TotalAll)
	for i := 1; i < len(page.Items); i++ {
		assert.False(t, page.Items[i].CheckIn.After(page.Items[i-1].CheckIn))
	}

	page, err = f.svc.List(ctx, f.janeAs, attendance.Filter{}, query.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.TotalAll)
	for _, a := range page.Items {
		assert.Equal(t, f.jane.ID, a.StaffID)
	}

	from := time.Date(2024, 3, 5, 0, 0, 0, 0, lagos)
	to := time.Date(2024, 3, 6, 0, 0, 0, 0, lagos)
	page, err = f.svc.List(ctx, f.admin, attendance.Filter{Status: attendance.StatusPresent, From: &from, To: &to}, query.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = f.svc.List(ctx, f.admin, attendance.Filter{Search: "nobody"}, query.Pagination{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestListDateWindowUsesConfiguredZone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 00:30 local on Mar 5 is still Mar 4 in UTC.
	_, err := f.svc.Mark(ctx, f.admin, attendance.MarkInput{
		StaffID: f.jane.ID, Status: attendance.StatusPresent,
		CheckIn: time.Date(2024, 3, 5, 0, 30, 0, 0, lagos),
	})
	require.NoError(t, err)

	// Query dates arrive as plain calendar days in the server zone.
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	page, err := f.svc.List(ctx, f.admin, attendance.Filter{From: &day, To: &day}, query.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	prev := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	page, err = f.svc.List(ctx, f.admin, attendance.Filter{From: &prev, To: &prev}, query.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestStaffMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addStaff(t, "John", "Roe", "Kitchen", "john@example.com")

	_, err := f.svc.Mark(ctx, f.admin, attendance.MarkInput{StaffID: f.jane.ID, Status: attendance.StatusPresent, CheckIn: f.now.AddDate(0, 0, -1)})
	require.NoError(t, err)
	_, err = f.svc.QuickCheckIn(ctx, f.janeAs, f.jane.ID)
	require.NoError(t, err)

	members, err := f.svc.StaffMembers(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, members, 2)
	byName := map[string]attendance.Member{}
	for _, m := range members {
		byName[m.FirstName] = m
	}
	assert.True(t, byName["Jane"].MarkedToday)
	require.NotNil(t, byName["Jane"].LastCheckIn)
	assert.True(t, byName["Jane"].LastCheckIn.Equal(f.now))
	assert.False(t, byName["John"].MarkedToday)
	assert.Nil(t, byName["John"].LastCheckIn)

	own, err := f.svc.Staff(ctx, f.janeAs)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, f.jane.ID, own[0].ID)
}
