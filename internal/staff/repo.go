package staff

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"attendance/internal/dbutil"
	"attendance/internal/query"
	"attendance/internal/user"
)

// GormRepository persists staff in Postgres through GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) CreateWithUser(ctx context.Context, u *user.User, s *Staff) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		u.Email = user.NormalizeEmail(u.Email)
		if err := tx.Create(u).Error; err != nil {
			return dbutil.Conflict(err, "A user with this email already exists")
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.UserID = &u.ID
		if err := tx.Omit("User").Create(s).Error; err != nil {
			return err
		}
		s.User = u
		return nil
	})
}

func (r *GormRepository) Get(ctx context.Context, id string) (Staff, error) {
	var s Staff
	if err := r.db.WithContext(ctx).Preload("User").First(&s, "id = ?", id).Error; err != nil {
		return Staff{}, dbutil.NotFound(err, "Staff")
	}
	return s, nil
}

func (r *GormRepository) GetByUserID(ctx context.Context, userID string) (Staff, error) {
	var s Staff
	if err := r.db.WithContext(ctx).Preload("User").First(&s, "user_id = ?", userID).Error; err != nil {
		return Staff{}, dbutil.NotFound(err, "Staff profile")
	}
	return s, nil
}

func (r *GormRepository) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&Staff{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

func (r *GormRepository) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := r.scoped(ctx, f)
	if f.Search != "" {
		like := query.Like(f.Search)
		q = q.Where("(first_name ILIKE ? OR last_name ILIKE ? OR department ILIKE ? OR phone ILIKE ?)", like, like, like, like)
	}
	if f.Department != "" {
		q = q.Where("department = ?", f.Department)
	}
	if f.JoinedFrom != nil {
		q = q.Where("created_at >= ?", *f.JoinedFrom)
	}
	if f.JoinedTo != nil {
		q = q.Where("created_at < ?", query.EndOfDay(*f.JoinedTo))
	}
	return q
}

func (r *GormRepository) List(ctx context.Context, f Filter, p query.Pagination) (query.Page[Staff], error) {
	p = p.Normalize()
	var total, totalAll int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return query.Page[Staff]{}, err
	}
	if err := r.scoped(ctx, f).Count(&totalAll).Error; err != nil {
		return query.Page[Staff]{}, err
	}
	var rows []Staff
	if err := p.Scope(r.filtered(ctx, f).Preload("User").Order("created_at DESC")).Find(&rows).Error; err != nil {
		return query.Page[Staff]{}, err
	}
	return query.NewPage(rows, total, totalAll, p), nil
}

func (r *GormRepository) All(ctx context.Context) ([]Staff, error) {
	var rows []Staff
	err := r.db.WithContext(ctx).Preload("User").Order("first_name, last_name").Find(&rows).Error
	return rows, err
}

func (r *GormRepository) Departments(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&Staff{}).Distinct().Order("department").Pluck("department", &out).Error
	return out, err
}

func (r *GormRepository) Update(ctx context.Context, s *Staff) error {
	res := r.db.WithContext(ctx).Model(s).Select("*").Omit("User", "CreatedAt").Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbutil.NotFound(gorm.ErrRecordNotFound, "Staff")
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s Staff
		if err := tx.First(&s, "id = ?", id).Error; err != nil {
			return dbutil.NotFound(err, "Staff")
		}
		if err := tx.Delete(&Staff{}, "id = ?", id).Error; err != nil {
			return err
		}
		if s.UserID != nil {
			if err := tx.Delete(&user.User{}, "id = ?", *s.UserID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
