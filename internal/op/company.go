package op

import (
	"context"
	"fmt"
	"time"

	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/utils/cache"
	"gorm.io/gorm"
)

var companyCache = cache.New[string, model.Company](16)
var companyKeyHashMap = cache.New[string, string](16) // sha256 key hash -> company id

func CompanyCreate(company *model.Company, ctx context.Context) error {
	if err := db.GetDB().WithContext(ctx).Create(company).Error; err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	companyCache.Set(company.ID, *company)
	companyKeyHashMap.Set(company.APIKeyHash, company.ID)
	return nil
}

func CompanyUpdate(req *model.CompanyUpdateRequest, ctx context.Context) (model.Company, error) {
	existing, ok := companyCache.Get(req.ID)
	if !ok {
		return model.Company{}, fmt.Errorf("company not found")
	}

	updates := map[string]any{}
	if req.Name != nil {
		existing.Name = *req.Name
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		existing.Email = *req.Email
		updates["email"] = *req.Email
	}
	if req.GeminiKey != nil {
		existing.GeminiKey = *req.GeminiKey
		updates["gemini_key"] = *req.GeminiKey
	}
	if req.DailyLimit != nil {
		existing.DailyLimit = *req.DailyLimit
		updates["daily_limit"] = *req.DailyLimit
	}
	if req.CostPerExtraCall != nil {
		existing.CostPerExtraCall = *req.CostPerExtraCall
		updates["cost_per_extra_call"] = *req.CostPerExtraCall
	}
	if req.RateLimitPerMinute != nil {
		existing.RateLimitPerMinute = *req.RateLimitPerMinute
		updates["rate_limit_per_minute"] = *req.RateLimitPerMinute
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return model.Company{}, fmt.Errorf("invalid company status: %s", *req.Status)
		}
		existing.Status = *req.Status
		updates["status"] = *req.Status
	}
	if req.ExpiryDate != nil {
		existing.ExpiryDate = *req.ExpiryDate
		updates["expiry_date"] = *req.ExpiryDate
	}
	if len(updates) == 0 {
		return existing, nil
	}

	if err := db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("id = ?", req.ID).Updates(updates).Error; err != nil {
		return model.Company{}, fmt.Errorf("failed to update company: %w", err)
	}
	companyCache.Set(req.ID, existing)
	return existing, nil
}

func CompanyList(ctx context.Context) ([]model.Company, error) {
	companies := make([]model.Company, 0, companyCache.Len())
	for _, company := range companyCache.GetAll() {
		companies = append(companies, company)
	}
	return companies, nil
}

func CompanyGet(id string, ctx context.Context) (model.Company, error) {
	company, ok := companyCache.Get(id)
	if !ok {
		return model.Company{}, fmt.Errorf("company not found")
	}
	return company, nil
}

func CompanyGetByKeyHash(hash string, ctx context.Context) (model.Company, error) {
	id, ok := companyKeyHashMap.Get(hash)
	if !ok {
		return model.Company{}, fmt.Errorf("company not found")
	}
	return CompanyGet(id, ctx)
}

// CompanyDelete removes the tenant row. Usage and audit ledgers are kept for
// billing history.
func CompanyDelete(id string, ctx context.Context) error {
	company, ok := companyCache.Get(id)
	if !ok {
		return fmt.Errorf("company not found")
	}
	result := db.GetDB().WithContext(ctx).Delete(&model.Company{ID: id})
	if result.Error != nil {
		return fmt.Errorf("failed to delete company: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("company not found")
	}
	companyCache.Del(id)
	companyKeyHashMap.Del(company.APIKeyHash)
	return nil
}

// CompanyReplaceKeyHash installs a rotated key hash. The old key stops
// resolving the moment the hash map entry is swapped, and rotation clears a
// prior revocation.
func CompanyReplaceKeyHash(id, newHash string, ctx context.Context) error {
	company, ok := companyCache.Get(id)
	if !ok {
		return fmt.Errorf("company not found")
	}
	if err := db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("id = ?", id).
		Updates(map[string]any{"api_key_hash": newHash, "api_key_revoked": false}).Error; err != nil {
		return fmt.Errorf("failed to rotate key: %w", err)
	}
	companyKeyHashMap.Del(company.APIKeyHash)
	company.APIKeyHash = newHash
	company.APIKeyRevoked = false
	companyCache.Set(id, company)
	companyKeyHashMap.Set(newHash, id)
	return nil
}

func CompanyRevokeKey(id string, ctx context.Context) error {
	company, ok := companyCache.Get(id)
	if !ok {
		return fmt.Errorf("company not found")
	}
	if err := db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("id = ?", id).Update("api_key_revoked", true).Error; err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	company.APIKeyRevoked = true
	companyCache.Set(id, company)
	return nil
}

// CompanyRateConsume takes one slot of the tenant's per-minute window, or
// reports the window full. Both paths are single conditional UPDATEs so
// concurrent requests cannot double-spend a slot.
func CompanyRateConsume(id string, now int64, ctx context.Context) (bool, int, error) {
	company, ok := companyCache.Get(id)
	if !ok {
		return false, 0, fmt.Errorf("company not found")
	}
	limit := company.RateLimitPerMinute
	d := db.GetDB().WithContext(ctx).Model(&model.Company{})

	// window older than 60s: restart it with this request
	result := d.Where("id = ? AND last_request_time <= ?", id, now-60).
		Updates(map[string]any{"requests_this_minute": 1, "last_request_time": now})
	if result.Error != nil {
		return false, limit, fmt.Errorf("failed to reset rate window: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		company.RequestsThisMinute = 1
		company.LastRequestTime = now
		companyCache.Set(id, company)
		return true, limit, nil
	}

	// still inside the window: increment while below the limit. The anchor
	// moves to this request, so the window only expires 60s after the last
	// admitted call.
	result = db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("id = ? AND requests_this_minute < ?", id, limit).
		Updates(map[string]any{
			"requests_this_minute": gorm.Expr("requests_this_minute + 1"),
			"last_request_time":    now,
		})
	if result.Error != nil {
		return false, limit, fmt.Errorf("failed to consume rate slot: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		company.RequestsThisMinute++
		company.LastRequestTime = now
		companyCache.Set(id, company)
		return true, limit, nil
	}
	return false, limit, nil
}

// CompanyAddUsage counts one completed analysis against the daily quota and
// returns the resulting counter. Overage never blocks, so the increment is
// unconditional and atomic; the counter is read back so callers report the
// durable value, not their admission-time snapshot.
func CompanyAddUsage(id string, ctx context.Context) (int, error) {
	result := db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("id = ?", id).
		Update("current_usage", gorm.Expr("current_usage + 1"))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to add usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("company not found")
	}
	var usage int
	if err := db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("id = ?", id).Select("current_usage").Scan(&usage).Error; err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}
	if company, ok := companyCache.Get(id); ok {
		company.CurrentUsage = usage
		companyCache.Set(id, company)
	}
	return usage, nil
}

func CompanyResetUsage(id string, ctx context.Context) error {
	now := time.Now().Unix()
	result := db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("id = ?", id).
		Updates(map[string]any{"current_usage": 0, "reset_date": now})
	if result.Error != nil {
		return fmt.Errorf("failed to reset usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("company not found")
	}
	if company, ok := companyCache.Get(id); ok {
		company.CurrentUsage = 0
		company.ResetDate = now
		companyCache.Set(id, company)
	}
	return nil
}

// CompanyResetAllUsage zeroes every tenant's daily counter. Idempotent: a
// second run in the same second affects the same rows to the same values.
func CompanyResetAllUsage(ctx context.Context) (int64, error) {
	now := time.Now().Unix()
	result := db.GetDB().WithContext(ctx).Model(&model.Company{}).
		Where("1 = 1").
		Updates(map[string]any{"current_usage": 0, "reset_date": now})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset all usage: %w", result.Error)
	}
	for id, company := range companyCache.GetAll() {
		company.CurrentUsage = 0
		company.ResetDate = now
		companyCache.Set(id, company)
	}
	return result.RowsAffected, nil
}

func companyRefreshCache(ctx context.Context) error {
	companies := []model.Company{}
	if err := db.GetDB().WithContext(ctx).Find(&companies).Error; err != nil {
		return err
	}
	for _, company := range companies {
		companyCache.Set(company.ID, company)
		companyKeyHashMap.Set(company.APIKeyHash, company.ID)
	}
	return nil
}
