package op

import (
	"context"
	"fmt"
	"time"

	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/utils/snowflake"
)

// AuditLogAdd writes the entry straight to the database. The security trail
// must survive a crash, so it never sits in the usage-log buffer.
func AuditLogAdd(ctx context.Context, entry model.AuditLog) error {
	entry.ID = snowflake.GenerateID()
	if entry.Time == 0 {
		entry.Time = time.Now().Unix()
	}
	if err := db.GetDB().WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func AuditLogList(ctx context.Context, query model.AuditQuery) ([]model.AuditLog, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Size < 1 || query.Size > 200 {
		query.Size = 50
	}
	q := db.GetDB().WithContext(ctx).Model(&model.AuditLog{})
	if query.CompanyID != "" {
		q = q.Where("company_id = ?", query.CompanyID)
	}
	if query.Action != "" {
		q = q.Where("action = ?", query.Action)
	}
	if query.Start != 0 {
		q = q.Where("time >= ?", query.Start)
	}
	if query.End != 0 {
		q = q.Where("time <= ?", query.End)
	}
	var entries []model.AuditLog
	if err := q.Order("id DESC").
		Offset((query.Page - 1) * query.Size).Limit(query.Size).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func AuditLogCleanupTask(ctx context.Context) error {
	keepPeriod, err := SettingGetInt(model.SettingKeyAuditLogKeepPeriod)
	if err != nil {
		return err
	}
	if keepPeriod <= 0 {
		return nil
	}
	cutoffTime := time.Now().Add(-time.Duration(keepPeriod) * 24 * time.Hour).Unix()
	return db.GetDB().WithContext(ctx).Where("time < ?", cutoffTime).Delete(&model.AuditLog{}).Error
}
