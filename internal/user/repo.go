package user

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"attendance/internal/auth"
	"attendance/internal/dbutil"
	"attendance/internal/query"
)

const errEmailTaken = "A user with this email already exists"

// GormRepository persists users in Postgres through GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Create inserts u, assigning an id when missing.
func (r *GormRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	return dbutil.Conflict(r.db.WithContext(ctx).Create(u).Error, errEmailTaken)
}

// Get returns a single user by id.
func (r *GormRepository) Get(ctx context.Context, id string) (User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return User{}, dbutil.NotFound(err, "User")
	}
	return u, nil
}

// GetByEmail returns a single user by normalized email.
func (r *GormRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", NormalizeEmail(email)).Error; err != nil {
		return User{}, dbutil.NotFound(err, "User")
	}
	return u, nil
}

func (r *GormRepository) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&User{})
	if f.Search != "" {
		like := query.Like(f.Search)
		q = q.Where("(name ILIKE ? OR email ILIKE ?)", like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Verified != nil {
		q = q.Where("is_email_verified = ?", *f.Verified)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.JoinedFrom != nil {
		q = q.Where("created_at >= ?", *f.JoinedFrom)
	}
	if f.JoinedTo != nil {
		q = q.Where("created_at < ?", query.EndOfDay(*f.JoinedTo))
	}
	return q
}

// List returns a page of users, newest first.
func (r *GormRepository) List(ctx context.Context, f Filter, p query.Pagination) (query.Page[User], error) {
	p = p.Normalize()
	var total, totalAll int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return query.Page[User]{}, err
	}
	if err := r.db.WithContext(ctx).Model(&User{}).Count(&totalAll).Error; err != nil {
		return query.Page[User]{}, err
	}
	var rows []User
	if err := p.Scope(r.filtered(ctx, f).Order("created_at DESC")).Find(&rows).Error; err != nil {
		return query.Page[User]{}, err
	}
	return query.NewPage(rows, total, totalAll, p), nil
}

// FindByIDs returns the users among ids that exist.
func (r *GormRepository) FindByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// FindActiveByRole returns every active user with role.
func (r *GormRepository) FindActiveByRole(ctx context.Context, role auth.Role) ([]User, error) {
	var rows []User
	err := r.db.WithContext(ctx).Where("role = ? AND is_active = ?", role, true).Order("name").Find(&rows).Error
	return rows, err
}

// CountByRole counts users with role.
func (r *GormRepository) CountByRole(ctx context.Context, role auth.Role) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&User{}).Where("role = ?", role).Count(&n).Error
	return n, err
}

// Update writes every column of an existing user.
func (r *GormRepository) Update(ctx context.Context, u *User) error {
	u.Email = NormalizeEmail(u.Email)
	res := r.db.WithContext(ctx).Model(u).Select("*").Omit("CreatedAt").Updates(u)
	if res.Error != nil {
		return dbutil.Conflict(res.Error, errEmailTaken)
	}
	if res.RowsAffected == 0 {
		return dbutil.NotFound(gorm.ErrRecordNotFound, "User")
	}
	return nil
}

// Delete removes a user. Notifications cascade, staff.user_id is nulled.
func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbutil.NotFound(gorm.ErrRecordNotFound, "User")
	}
	return nil
}
