package store

import (
	"context"
	"fmt"

	"attendance/internal/attendance"
	"attendance/internal/notification"
	"attendance/internal/staff"
	"attendance/internal/user"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&user.User{},
		&staff.Staff{},
		&attendance.Attendance{},
		&notification.Notification{},
	}
}

// Migrate creates or updates the schema, including the unique
// (staff_id, check_in_date) index on attendance.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.Gorm.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
