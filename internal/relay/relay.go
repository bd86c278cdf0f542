// Package relay runs one admitted analysis end to end: upstream call, result
// parsing, image archival, ledger writes and the quota increment.
package relay

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/bestruirui/sprout/internal/conf"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/provider"
	"github.com/bestruirui/sprout/internal/storage"
	"github.com/bestruirui/sprout/internal/utils/log"
	"github.com/bestruirui/sprout/internal/utils/snowflake"
	"github.com/bestruirui/sprout/internal/utils/tokenizer"
	"github.com/bestruirui/sprout/internal/utils/xurl"
)

// Meta carries the request context the ledgers need.
type Meta struct {
	Endpoint  string
	IPAddress string
	UserAgent string
	Overage   bool
	Cost      float64
}

// Analyze performs the upstream call for an already-admitted request. A
// parse failure still counts as success (the fallback payload is returned);
// an upstream failure writes a failed usage entry at zero cost and returns
// the error.
func Analyze(ctx context.Context, company model.Company, req model.AnalyzeRequest, meta Meta) (model.AnalyzeResponse, error) {
	start := time.Now()
	text, tokens, err := provider.Generate(ctx, company.GeminiKey, req)
	elapsed := int(time.Since(start).Milliseconds())

	if err != nil {
		if logErr := op.UsageLogAdd(ctx, model.UsageLog{
			CompanyID:    company.ID,
			Endpoint:     meta.Endpoint,
			ResponseTime: elapsed,
			Success:      false,
			ErrorMessage: err.Error(),
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
		}); logErr != nil {
			log.Errorf("failed to record failed usage: %v", logErr)
		}
		op.AuditLogAdd(ctx, model.AuditLog{
			CompanyID: company.ID,
			Action:    model.AuditRequestFailed,
			Details:   map[string]any{"error": err.Error(), "endpoint": meta.Endpoint},
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		return model.AnalyzeResponse{}, err
	}

	if tokens == 0 {
		tokens = tokenizer.EstimateTokens(text)
	}

	result, parseErr := provider.ExtractResult(text)
	if parseErr != nil {
		log.Warnf("analysis parse failed for company %s: %v", company.ID, parseErr)
		result = provider.FallbackResult(text)
	}

	imageURL := archiveImage(ctx, company.ID, req.Image)

	if err := op.AnalysisRecordAdd(ctx, &model.AnalysisRecord{
		CompanyID: company.ID,
		ImageURL:  imageURL,
		Result:    result,
	}); err != nil {
		log.Errorf("failed to persist analysis record: %v", err)
	}

	if err := op.UsageLogAdd(ctx, model.UsageLog{
		CompanyID:    company.ID,
		Endpoint:     meta.Endpoint,
		ResponseTime: elapsed,
		TokensUsed:   tokens,
		Cost:         meta.Cost,
		Success:      true,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}); err != nil {
		log.Errorf("failed to record usage: %v", err)
	}
	op.AuditLogAdd(ctx, model.AuditLog{
		CompanyID: company.ID,
		Action:    model.AuditRequestSuccess,
		Details: map[string]any{
			"endpoint": meta.Endpoint,
			"overage":  meta.Overage,
			"tokens":   tokens,
			"fallback": result.Fallback,
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	usage, err := op.CompanyAddUsage(company.ID, ctx)
	if err != nil {
		log.Errorf("failed to increment usage for company %s: %v", company.ID, err)
		usage = company.CurrentUsage + 1
	}

	remaining := company.DailyLimit - usage
	if remaining < 0 {
		remaining = 0
	}

	return model.AnalyzeResponse{
		AnalysisResult: result,
		Branding:       conf.Branding,
		RemainingToday: remaining,
		Overage:        meta.Overage,
		ImageURL:       imageURL,
	}, nil
}

// archiveImage stores the image when the feature is on. Any failure just
// leaves image_url empty.
func archiveImage(ctx context.Context, companyID, image string) string {
	enabled, err := op.SettingGetBool(model.SettingKeyImageStoreEnabled)
	if err != nil || !enabled || !storage.Enabled() {
		return ""
	}

	mimeType := "image/jpeg"
	payload := image
	if xurl.IsDataURL(image) {
		if mt := xurl.ExtractMediaTypeFromDataURL(image); mt != "" {
			mimeType = mt
		}
		payload = xurl.ExtractBase64FromDataURL(image)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		log.Warnf("image archive skipped, bad base64: %v", err)
		return ""
	}

	key := fmt.Sprintf("%s/%d%s", companyID, snowflake.GenerateID(), extension(mimeType))
	url, err := storage.PutImage(ctx, key, mimeType, raw)
	if err != nil {
		log.Warnf("image archive failed: %v", err)
		return ""
	}
	return url
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
