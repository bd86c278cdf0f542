package op

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/utils/log"
	"github.com/bestruirui/sprout/internal/utils/snowflake"
	"github.com/samber/lo"
)

const usageLogMaxSize = 20

var usageLogCache = make([]model.UsageLog, 0, usageLogMaxSize)
var usageLogCacheLock sync.Mutex

var usageLogFlushLock sync.Mutex

var usageLogSubscribers = make(map[chan model.UsageLog]struct{})
var usageLogSubscribersLock sync.RWMutex

var usageLogStreamTokens = make(map[string]struct{})
var usageLogStreamTokensLock sync.RWMutex

// UsageLogStreamTokenCreate mints a one-off token for the SSE feed, because
// EventSource cannot send an Authorization header.
func UsageLogStreamTokenCreate() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(bytes)

	usageLogStreamTokensLock.Lock()
	usageLogStreamTokens[token] = struct{}{}
	usageLogStreamTokensLock.Unlock()

	return token, nil
}

func UsageLogStreamTokenVerify(token string) bool {
	usageLogStreamTokensLock.RLock()
	_, ok := usageLogStreamTokens[token]
	usageLogStreamTokensLock.RUnlock()
	return ok
}

func UsageLogStreamTokenRevoke(token string) {
	usageLogStreamTokensLock.Lock()
	delete(usageLogStreamTokens, token)
	usageLogStreamTokensLock.Unlock()
}

func UsageLogSubscribe() chan model.UsageLog {
	ch := make(chan model.UsageLog, 10)
	usageLogSubscribersLock.Lock()
	usageLogSubscribers[ch] = struct{}{}
	usageLogSubscribersLock.Unlock()
	return ch
}

func UsageLogUnsubscribe(ch chan model.UsageLog) {
	usageLogSubscribersLock.Lock()
	delete(usageLogSubscribers, ch)
	usageLogSubscribersLock.Unlock()
	close(ch)
}

func notifyUsageSubscribers(entry model.UsageLog) {
	usageLogSubscribersLock.RLock()
	defer usageLogSubscribersLock.RUnlock()

	for ch := range usageLogSubscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

func usageLogFlushToDB(ctx context.Context) error {
	usageLogFlushLock.Lock()
	defer usageLogFlushLock.Unlock()

	usageLogCacheLock.Lock()
	if len(usageLogCache) == 0 {
		usageLogCacheLock.Unlock()
		return nil
	}
	batch := make([]model.UsageLog, len(usageLogCache))
	copy(batch, usageLogCache)
	flushedUpto := len(batch)
	usageLogCacheLock.Unlock()

	if err := db.GetDB().WithContext(ctx).Create(&batch).Error; err != nil {
		return err
	}

	usageLogCacheLock.Lock()
	if len(usageLogCache) >= flushedUpto {
		usageLogCache = usageLogCache[flushedUpto:]
	} else {
		usageLogCache = usageLogCache[:0]
	}
	if len(usageLogCache) == 0 {
		usageLogCache = make([]model.UsageLog, 0, usageLogMaxSize)
	}
	usageLogCacheLock.Unlock()

	return nil
}

// UsageLogAdd buffers a ledger entry and flushes the buffer once it fills.
// The ledger is append-only: every entry reaches the database, entries are
// never dropped to cap memory.
func UsageLogAdd(ctx context.Context, entry model.UsageLog) error {
	entry.ID = snowflake.GenerateID()
	if entry.Time == 0 {
		entry.Time = time.Now().Unix()
	}
	go notifyUsageSubscribers(entry)

	usageLogCacheLock.Lock()
	usageLogCache = append(usageLogCache, entry)
	full := len(usageLogCache) >= usageLogMaxSize
	usageLogCacheLock.Unlock()

	if full {
		return usageLogFlushToDB(ctx)
	}
	return nil
}

func UsageLogSaveDBTask(ctx context.Context) error {
	log.Debugf("usage log save db task started")
	startTime := time.Now()
	defer func() {
		log.Debugf("usage log save db task finished, save time: %s", time.Since(startTime))
	}()
	if err := usageLogFlushToDB(ctx); err != nil {
		return err
	}
	return usageLogCleanup(ctx)
}

func usageLogCleanup(ctx context.Context) error {
	keepPeriod, err := SettingGetInt(model.SettingKeyUsageLogKeepPeriod)
	if err != nil {
		return err
	}
	if keepPeriod <= 0 {
		return nil
	}
	cutoffTime := time.Now().Add(-time.Duration(keepPeriod) * 24 * time.Hour).Unix()
	return db.GetDB().WithContext(ctx).Where("time < ?", cutoffTime).Delete(&model.UsageLog{}).Error
}

// UsageLogList pages through the ledger, newest first. Pending buffered
// entries are flushed before querying so the page is complete.
func UsageLogList(ctx context.Context, query model.UsageQuery) ([]model.UsageLog, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Size < 1 || query.Size > 200 {
		query.Size = 50
	}

	if err := usageLogFlushToDB(ctx); err != nil {
		return nil, err
	}
	q := db.GetDB().WithContext(ctx).Model(&model.UsageLog{})
	if query.CompanyID != "" {
		q = q.Where("company_id = ?", query.CompanyID)
	}
	if query.Start != 0 {
		q = q.Where("time >= ?", query.Start)
	}
	if query.End != 0 {
		q = q.Where("time <= ?", query.End)
	}
	var entries []model.UsageLog
	if err := q.Order("id DESC").
		Offset((query.Page - 1) * query.Size).Limit(query.Size).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// UsageSummary aggregates one tenant (or all, with empty companyID) over
// [start, end].
func UsageSummary(ctx context.Context, companyID string, start, end int64) (model.UsageSummary, error) {
	if err := usageLogFlushToDB(ctx); err != nil {
		return model.UsageSummary{}, err
	}
	type row struct {
		TotalRequests int64
		SuccessCount  int64
		TotalTokens   int64
		TotalCost     float64
		AvgResponseMs float64
	}
	var r row
	q := db.GetDB().WithContext(ctx).Model(&model.UsageLog{}).
		Select(`COUNT(*) AS total_requests,
SUM(CASE WHEN success THEN 1 ELSE 0 END) AS success_count,
COALESCE(SUM(tokens_used), 0) AS total_tokens,
COALESCE(SUM(cost), 0) AS total_cost,
COALESCE(AVG(response_time), 0) AS avg_response_ms`).
		Where("time >= ? AND time <= ?", start, end)
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}
	if err := q.Scan(&r).Error; err != nil {
		return model.UsageSummary{}, err
	}
	return model.UsageSummary{
		CompanyID:     companyID,
		TotalRequests: r.TotalRequests,
		SuccessCount:  r.SuccessCount,
		FailureCount:  r.TotalRequests - r.SuccessCount,
		TotalTokens:   r.TotalTokens,
		TotalCost:     r.TotalCost,
		AvgResponseMs: r.AvgResponseMs,
	}, nil
}

// UsageDaily buckets the ledger per UTC day. Day boundaries are computed as
// time - time % 86400 so the grouping works the same on every dialect.
func UsageDaily(ctx context.Context, companyID string, start, end int64) ([]model.UsageBucket, error) {
	if err := usageLogFlushToDB(ctx); err != nil {
		return nil, err
	}
	type row struct {
		DayStart int64
		Requests int64
		Tokens   int64
		Cost     float64
	}
	var rows []row
	q := db.GetDB().WithContext(ctx).Model(&model.UsageLog{}).
		Select(`time - (time % 86400) AS day_start,
COUNT(*) AS requests,
COALESCE(SUM(tokens_used), 0) AS tokens,
COALESCE(SUM(cost), 0) AS cost`).
		Where("time >= ? AND time <= ?", start, end)
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}
	if err := q.Group("day_start").Order("day_start").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r row, _ int) model.UsageBucket {
		return model.UsageBucket{
			Day:      time.Unix(r.DayStart, 0).UTC().Format("2006-01-02"),
			Requests: r.Requests,
			Tokens:   r.Tokens,
			Cost:     r.Cost,
		}
	}), nil
}

// UsageByCompany ranks tenants by request volume over [start, end].
func UsageByCompany(ctx context.Context, start, end int64) ([]model.UsageSummary, error) {
	if err := usageLogFlushToDB(ctx); err != nil {
		return nil, err
	}
	type row struct {
		CompanyID     string
		TotalRequests int64
		SuccessCount  int64
		TotalTokens   int64
		TotalCost     float64
		AvgResponseMs float64
	}
	var rows []row
	if err := db.GetDB().WithContext(ctx).Model(&model.UsageLog{}).
		Select(`company_id,
COUNT(*) AS total_requests,
SUM(CASE WHEN success THEN 1 ELSE 0 END) AS success_count,
COALESCE(SUM(tokens_used), 0) AS total_tokens,
COALESCE(SUM(cost), 0) AS total_cost,
COALESCE(AVG(response_time), 0) AS avg_response_ms`).
		Where("time >= ? AND time <= ?", start, end).
		Group("company_id").Order("total_requests DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r row, _ int) model.UsageSummary {
		return model.UsageSummary{
			CompanyID:     r.CompanyID,
			TotalRequests: r.TotalRequests,
			SuccessCount:  r.SuccessCount,
			FailureCount:  r.TotalRequests - r.SuccessCount,
			TotalTokens:   r.TotalTokens,
			TotalCost:     r.TotalCost,
			AvgResponseMs: r.AvgResponseMs,
		}
	}), nil
}

// UsageByEndpoint ranks endpoints by request volume over [start, end].
func UsageByEndpoint(ctx context.Context, start, end int64) ([]model.EndpointUsage, error) {
	if err := usageLogFlushToDB(ctx); err != nil {
		return nil, err
	}
	var rows []model.EndpointUsage
	if err := db.GetDB().WithContext(ctx).Model(&model.UsageLog{}).
		Select(`endpoint,
COUNT(*) AS requests,
SUM(CASE WHEN success THEN 1 ELSE 0 END) AS success_count,
COALESCE(AVG(response_time), 0) AS avg_response_ms`).
		Where("time >= ? AND time <= ?", start, end).
		Group("endpoint").Order("requests DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
