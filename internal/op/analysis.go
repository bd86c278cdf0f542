package op

import (
	"context"
	"fmt"
	"time"

	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/utils/snowflake"
)

func AnalysisRecordAdd(ctx context.Context, record *model.AnalysisRecord) error {
	record.ID = snowflake.GenerateID()
	if record.Time == 0 {
		record.Time = time.Now().Unix()
	}
	if err := db.GetDB().WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create analysis record: %w", err)
	}
	return nil
}

func AnalysisRecordList(ctx context.Context, companyID string, page, size int) ([]model.AnalysisRecord, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	q := db.GetDB().WithContext(ctx).Model(&model.AnalysisRecord{})
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}
	var records []model.AnalysisRecord
	if err := q.Order("id DESC").Offset((page - 1) * size).Limit(size).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
