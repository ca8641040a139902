package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/notification"
	"attendance/internal/query"
	"attendance/internal/store/storetest"
	"attendance/internal/user"
)

func TestGormEmailIsUniqueCaseInsensitively(t *testing.T) {
	repo := user.NewRepository(storetest.Open(t))
	ctx := context.Background()

	u := user.User{Name: "Jane", Email: "Jane@Example.com", PasswordHash: "x", Role: auth.RoleStaff, IsActive: true}
	require.NoError(t, repo.Create(ctx, &u))
	got, err := repo.GetByEmail(ctx, " JANE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := user.User{Name: "Jane 2", Email: "jane@example.com", PasswordHash: "x", Role: auth.RoleStaff}
	err = repo.Create(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "A user with this email already exists", apperr.Message(err))

	other := user.User{Name: "John", Email: "john@example.com", PasswordHash: "x", Role: auth.RoleStaff}
	require.NoError(t, repo.Create(ctx, &other))
	other.Email = "JANE@example.com"
	assert.True(t, errors.Is(repo.Update(ctx, &other), apperr.ErrConflict))
}

func TestGormListFiltersAndCounts(t *testing.T) {
	repo := user.NewRepository(storetest.Open(t))
	ctx := context.Background()
	for _, u := range []user.User{
		{Name: "Ada Admin", Email: "ada@example.com", Role: auth.RoleAdmin, IsActive: true},
		{Name: "Jane Doe", Email: "jane@example.com", Role: auth.RoleStaff, IsActive: true},
		{Name: "John Roe", Email: "john@example.com", Role: auth.RoleStaff, IsActive: false},
	} {
		u.PasswordHash = "x"
		require.NoError(t, repo.Create(ctx, &u))
	}

	active := true
	page, err := repo.List(ctx, user.Filter{Role: auth.RoleStaff, Active: &active}, query.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Jane Doe", page.Items[0].Name)
	assert.EqualValues(t, 3, page.TotalAll)

	page, err = repo.List(ctx, user.Filter{Search: "ROE"}, query.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	staffUsers, err := repo.FindActiveByRole(ctx, auth.RoleStaff)
	require.NoError(t, err)
	assert.Len(t, staffUsers, 1)

	n, err := repo.CountByRole(ctx, auth.RoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestGormDeleteCascadesAndUpdateDoesNotResurrect(t *testing.T) {
	db := storetest.Open(t)
	repo := user.NewRepository(db)
	notes := notification.NewRepository(db)
	ctx := context.Background()

	u := user.User{Name: "Jane", Email: "jane@example.com", PasswordHash: "x", Role: auth.RoleStaff, IsActive: true}
	require.NoError(t, repo.Create(ctx, &u))
	n := notification.Notification{UserID: &u.ID, Type: notification.TypeAccount, Title: "Welcome", Message: "hi"}
	require.NoError(t, notes.Create(ctx, &n))

	require.NoError(t, repo.Delete(ctx, u.ID))
	_, err := notes.Get(ctx, n.ID, false)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	u.Name = "Jane Again"
	assert.True(t, errors.Is(repo.Update(ctx, &u), apperr.ErrNotFound))
	_, err = repo.Get(ctx, u.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
