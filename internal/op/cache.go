package op

import (
	"context"
	"fmt"
	"time"
)

func InitCache() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := settingRefreshCache(ctx); err != nil {
		return fmt.Errorf("setting refresh cache error: %v", err)
	}
	if err := companyRefreshCache(ctx); err != nil {
		return fmt.Errorf("company refresh cache error: %v", err)
	}
	return nil
}

// SaveCache drains the in-memory buffers to the database, used on shutdown.
func SaveCache() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return usageLogFlushToDB(ctx)
}
