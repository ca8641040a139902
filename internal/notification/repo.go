package notification

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"attendance/internal/dbutil"
	"attendance/internal/query"
)

// GormRepository persists notifications in Postgres through GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Omit("User").Create(n).Error
}

func (r *GormRepository) Get(ctx context.Context, id string, withUser bool) (Notification, error) {
	q := r.db.WithContext(ctx)
	if withUser {
		q = q.Preload("User")
	}
	var n Notification
	if err := q.First(&n, "id = ?", id).Error; err != nil {
		return Notification{}, dbutil.NotFound(err, "Notification")
	}
	return n, nil
}

func (r *GormRepository) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&Notification{})
	if f.UserID != "" {
		q = q.Where("(user_id = ? OR user_id IS NULL) AND is_admin = ?", f.UserID, false)
	}
	return q
}

func (r *GormRepository) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := r.scoped(ctx, f)
	if f.Search != "" {
		like := query.Like(f.Search)
		q = q.Where("(title ILIKE ? OR message ILIKE ?)", like, like)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Read != nil {
		if *f.Read {
			q = q.Where("is_read = ?", true)
		} else {
			q = q.Where("(is_read IS NULL OR is_read = ?)", false)
		}
	}
	if f.IsAdmin != nil {
		q = q.Where("is_admin = ?", *f.IsAdmin)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", query.EndOfDay(*f.To))
	}
	return q
}

func (r *GormRepository) List(ctx context.Context, f Filter, p query.Pagination) (query.Page[Notification], error) {
	p = p.Normalize()
	var total, totalAll int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return query.Page[Notification]{}, err
	}
	if err := r.scoped(ctx, f).Count(&totalAll).Error; err != nil {
		return query.Page[Notification]{}, err
	}
	var rows []Notification
	if err := p.Scope(r.filtered(ctx, f).Order("created_at DESC")).Find(&rows).Error; err != nil {
		return query.Page[Notification]{}, err
	}
	return query.NewPage(rows, total, totalAll, p), nil
}

func (r *GormRepository) Update(ctx context.Context, n *Notification) error {
	res := r.db.WithContext(ctx).Model(n).Select("*").Omit("User", "CreatedAt").Updates(n)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbutil.NotFound(gorm.ErrRecordNotFound, "Notification")
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Notification{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbutil.NotFound(gorm.ErrRecordNotFound, "Notification")
	}
	return nil
}

func (r *GormRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Delete(&Notification{}, "id IN ?", ids)
	return res.RowsAffected, res.Error
}

func (r *GormRepository) selection(ctx context.Context, s Scope) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&Notification{})
	if s.IDs != nil {
		q = q.Where("id IN ?", s.IDs)
	}
	if s.UserID != "" {
		q = q.Where("user_id = ?", s.UserID)
	}
	if s.IsAdmin != nil {
		q = q.Where("is_admin = ?", *s.IsAdmin)
	}
	if s.Unread {
		q = q.Where("(is_read IS NULL OR is_read = ?)", false)
	}
	return q
}

func (r *GormRepository) MarkRead(ctx context.Context, s Scope) (int64, error) {
	if s.IDs != nil && len(s.IDs) == 0 {
		return 0, nil
	}
	s.Unread = true
	res := r.selection(ctx, s).Updates(map[string]any{"is_read": true})
	return res.RowsAffected, res.Error
}

func (r *GormRepository) Count(ctx context.Context, s Scope) (int64, error) {
	var n int64
	err := r.selection(ctx, s).Count(&n).Error
	return n, err
}
