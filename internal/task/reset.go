package task

import (
	"context"
	"time"

	"github.com/bestruirui/sprout/internal/helper"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/utils/log"
)

// CheckAndResetDailyUsage resets every tenant once the UTC day rolls over, in
// case the external cron trigger never arrived. Both paths run the same
// idempotent bulk reset, so double firing changes nothing.
func CheckAndResetDailyUsage() {
	ctx := context.Background()
	today := helper.StartOfDayUTC(time.Now())

	companies, err := op.CompanyList(ctx)
	if err != nil {
		log.Errorf("failed to list companies for daily reset: %v", err)
		return
	}

	stale := false
	for _, company := range companies {
		if company.ResetDate < today {
			stale = true
			break
		}
	}
	if !stale {
		return
	}

	count, err := op.CompanyResetAllUsage(ctx)
	if err != nil {
		log.Errorf("daily usage reset failed: %v", err)
		return
	}
	log.Infof("daily usage reset by fallback task, %d companies", count)
}
