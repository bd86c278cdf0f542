package task

import (
	"context"
	"time"

	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/utils/log"
)

const (
	TaskUsageLogSave    = "usage_log_save"
	TaskAuditLogCleanup = "audit_log_cleanup"
	TaskDailyReset      = "daily_reset"
)

func Init() {
	// flush the usage buffer and apply retention
	Register(TaskUsageLogSave, 1*time.Minute, false, func() {
		if err := op.UsageLogSaveDBTask(context.Background()); err != nil {
			log.Warnf("usage log save db task failed: %v", err)
		}
	})

	Register(TaskAuditLogCleanup, 24*time.Hour, true, func() {
		if err := op.AuditLogCleanupTask(context.Background()); err != nil {
			log.Warnf("audit log cleanup task failed: %v", err)
		}
	})

	// in-process safety net behind the external cron trigger
	Register(TaskDailyReset, 1*time.Minute, false, CheckAndResetDailyUsage)
}
