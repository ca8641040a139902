package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"attendance/internal/dbutil"
	"attendance/internal/query"
)

// GormRepository persists attendance in Postgres through GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, a *Attendance) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Omit("Staff", "MarkedBy").Create(a).Error
	if dbutil.IsUniqueViolation(err) {
		return ErrDuplicateDay
	}
	return err
}

func (r *GormRepository) Get(ctx context.Context, id string) (Attendance, error) {
	var a Attendance
	if err := r.db.WithContext(ctx).Preload("Staff.User").First(&a, "id = ?", id).Error; err != nil {
		return Attendance{}, dbutil.NotFound(err, "Attendance record")
	}
	return a, nil
}

func (r *GormRepository) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&Attendance{}).
		Joins("JOIN staff ON staff.id = attendance.staff_id")
	if f.UserID != "" {
		q = q.Where("staff.user_id = ?", f.UserID)
	}
	return q
}

func (r *GormRepository) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := r.scoped(ctx, f)
	if f.Search != "" {
		like := query.Like(f.Search)
		q = q.Where("(staff.first_name ILIKE ? OR staff.last_name ILIKE ? OR staff.department ILIKE ?)", like, like, like)
	}
	if f.Status != "" {
		q = q.Where("attendance.status = ?", f.Status)
	}
	if f.StaffID != "" {
		q = q.Where("attendance.staff_id = ?", f.StaffID)
	}
	if f.From != nil {
		q = q.Where("attendance.check_in >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("attendance.check_in < ?", query.EndOfDay(*f.To))
	}
	return q
}

func (r *GormRepository) List(ctx context.Context, f Filter, p query.Pagination) (query.Page[Attendance], error) {
	p = p.Normalize()
	var total, totalAll int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return query.Page[Attendance]{}, err
	}
	if err := r.scoped(ctx, f).Count(&totalAll).Error; err != nil {
		return query.Page[Attendance]{}, err
	}
	var rows []Attendance
	q := r.filtered(ctx, f).Preload("Staff.User").Order("attendance.check_in DESC")
	if err := p.Scope(q).Find(&rows).Error; err != nil {
		return query.Page[Attendance]{}, err
	}
	return query.NewPage(rows, total, totalAll, p), nil
}

// Update writes every column of an existing row. A row deleted meanwhile
// yields NotFound rather than being re-inserted.
func (r *GormRepository) Update(ctx context.Context, a *Attendance) error {
	res := r.db.WithContext(ctx).Model(a).Select("*").Omit("Staff", "MarkedBy", "CreatedAt").Updates(a)
	if dbutil.IsUniqueViolation(res.Error) {
		return ErrDuplicateDay
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbutil.NotFound(gorm.ErrRecordNotFound, "Attendance record")
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Attendance{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbutil.NotFound(gorm.ErrRecordNotFound, "Attendance record")
	}
	return nil
}

func (r *GormRepository) ExistsOn(ctx context.Context, staffID string, day datatypes.Date) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Attendance{}).
		Where("staff_id = ? AND check_in_date = ?", staffID, day).
		Count(&n).Error
	return n > 0, err
}

func (r *GormRepository) LastCheckIn(ctx context.Context, staffID string) (*time.Time, error) {
	var a Attendance
	err := r.db.WithContext(ctx).Select("check_in").
		Where("staff_id = ?", staffID).
		Order("check_in DESC").
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a.CheckIn, nil
}
