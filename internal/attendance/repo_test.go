package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"attendance/internal/apperr"
	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/query"
	"attendance/internal/staff"
	"attendance/internal/store/storetest"
	"attendance/internal/user"
)

type pgFixture struct {
	db    *gorm.DB
	repo  *attendance.GormRepository
	staff *staff.GormRepository
	users *user.GormRepository
	jane  staff.Staff
	john  staff.Staff
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	db := storetest.Open(t)
	f := &pgFixture{
		db:    db,
		repo:  attendance.NewRepository(db),
		staff: staff.NewRepository(db),
		users: user.NewRepository(db),
	}
	f.jane = f.addStaff(t, "Jane", "Doe", "Nursing", "jane@example.com")
	f.john = f.addStaff(t, "John", "Roe", "Kitchen", "john@example.com")
	return f
}

func (f *pgFixture) addStaff(t *testing.T, first, last, dept, email string) staff.Staff {
	t.Helper()
	u := user.User{Name: first + " " + last, Email: email, PasswordHash: "x", Role: auth.RoleStaff, IsActive: true}
	st := staff.Staff{FirstName: first, LastName: last, Department: dept}
	require.NoError(t, f.staff.CreateWithUser(context.Background(), &u, &st))
	return st
}

func (f *pgFixture) record(t *testing.T, st staff.Staff, status attendance.Status, at time.Time) attendance.Attendance {
	t.Helper()
	a := attendance.Attendance{StaffID: st.ID, Status: status, CheckIn: at, CheckInDate: attendance.DayOf(at, lagos)}
	require.NoError(t, f.repo.Create(context.Background(), &a))
	return a
}

func TestGormConcurrentCreateKeepsOneRowPerDay(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 4, 7, 55, 0, 0, lagos)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, dup int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := attendance.Attendance{
				StaffID:     f.jane.ID,
				Status:      attendance.StatusPresent,
				CheckIn:     at.Add(time.Duration(i) * time.Minute),
				CheckInDate: attendance.DayOf(at, lagos),
			}
			err := f.repo.Create(ctx, &a)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, attendance.ErrDuplicateDay):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, dup)

	marked, err := f.repo.ExistsOn(ctx, f.jane.ID, attendance.DayOf(at, lagos))
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestGormUpdateOntoTakenDay(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	monday := time.Date(2024, 3, 4, 8, 30, 0, 0, lagos)
	f.record(t, f.jane, attendance.StatusLate, monday)
	tuesday := f.record(t, f.jane, attendance.StatusPresent, monday.AddDate(0, 0, 1))

	tuesday.CheckIn = monday.Add(time.Hour)
	tuesday.CheckInDate = attendance.DayOf(tuesday.CheckIn, lagos)
	err := f.repo.Update(ctx, &tuesday)
	assert.True(t, errors.Is(err, attendance.ErrDuplicateDay))

	// Another staff member's day is independent.
	f.record(t, f.john, attendance.StatusPresent, monday)
}

func TestGormUpdateDoesNotResurrectDeletedRow(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	a := f.record(t, f.jane, attendance.StatusPresent, time.Date(2024, 3, 4, 7, 0, 0, 0, lagos))

	require.NoError(t, f.repo.Delete(ctx, a.ID))
	out := a.CheckIn.Add(8 * time.Hour)
	a.CheckOut = &out
	err := f.repo.Update(ctx, &a)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.repo.Get(ctx, a.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(f.repo.Delete(ctx, a.ID), apperr.ErrNotFound))
}

func TestGormListScopingAndCounts(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 4, 7, 30, 0, 0, lagos)
	for d := 0; d < 3; d++ {
		f.record(t, f.jane, attendance.StatusPresent, start.AddDate(0, 0, d))
		f.record(t, f.john, attendance.StatusLate, start.AddDate(0, 0, d))
	}

	page, err := f.repo.List(ctx, attendance.Filter{Search: "NURS"}, query.Pagination{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.EqualValues(t, 6, page.TotalAll)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.Items[0].Staff)
	assert.Equal(t, "Jane", page.Items[0].Staff.FirstName)
	assert.True(t, page.Items[0].CheckIn.After(page.Items[1].CheckIn))

	johnScope := attendance.Filter{UserID: *f.john.UserID}
	page, err = f.repo.List(ctx, johnScope, query.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.EqualValues(t, 3, page.TotalAll)
	for _, a := range page.Items {
		assert.Equal(t, f.john.ID, a.StaffID)
	}

	johnScope.Status = attendance.StatusPresent
	page, err = f.repo.List(ctx, johnScope, query.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.EqualValues(t, 3, page.TotalAll)

	from := time.Date(2024, 3, 5, 0, 0, 0, 0, lagos)
	page, err = f.repo.List(ctx, attendance.Filter{StaffID: f.jane.ID, From: &from, To: &from}, query.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	// LIKE wildcards in the search term are literal.
	page, err = f.repo.List(ctx, attendance.Filter{Search: "%"}, query.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestGormDeleteCascades(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	admin := user.User{Name: "Ada Admin", Email: "admin@example.com", PasswordHash: "x", Role: auth.RoleAdmin, IsActive: true}
	require.NoError(t, f.users.Create(ctx, &admin))
	at := time.Date(2024, 3, 4, 7, 30, 0, 0, lagos)
	marked := attendance.Attendance{StaffID: f.john.ID, Status: attendance.StatusAbsent, CheckIn: at, CheckInDate: attendance.DayOf(at, lagos), MarkedByID: &admin.ID}
	require.NoError(t, f.repo.Create(ctx, &marked))
	janes := f.record(t, f.jane, attendance.StatusPresent, at)

	require.NoError(t, f.users.Delete(ctx, admin.ID))
	got, err := f.repo.Get(ctx, marked.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MarkedByID)

	require.NoError(t, f.staff.Delete(ctx, f.jane.ID))
	_, err = f.repo.Get(ctx, janes.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = f.users.Get(ctx, *f.jane.UserID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	last, err := f.repo.LastCheckIn(ctx, f.john.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(at))
}
