package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bestruirui/sprout/internal/model"
)

// ExtractResult decodes the model's reply into a typed AnalysisResult. The
// reply is supposed to be bare JSON but models wrap it in markdown fences or
// prose often enough that the first balanced object is cut out before
// decoding. Callers fall back to FallbackResult on any error.
func ExtractResult(text string) (model.AnalysisResult, error) {
	var result model.AnalysisResult

	candidate := firstJSONObject(stripFences(text))
	if candidate == "" {
		return result, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return result, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if strings.TrimSpace(result.DiseaseName) == "" {
		return result, fmt.Errorf("analysis missing disease_name")
	}
	// models answer in percent often enough despite the prompt
	if result.Confidence > 1 && result.Confidence <= 100 {
		result.Confidence /= 100
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	result.Normalize()
	return result, nil
}

// FallbackResult is the deterministic payload returned when the reply cannot
// be decoded. The call still counts as a success: the upstream did answer,
// only the shape was off, and the raw text is preserved for the tenant.
func FallbackResult(raw string) model.AnalysisResult {
	if len(raw) > 4000 {
		raw = raw[:4000]
	}
	result := model.AnalysisResult{
		DiseaseName:  "Analysis Unavailable",
		Confidence:   0,
		DiseaseStage: "Unknown",
		Symptoms:     []string{"The analysis response could not be structured"},
		ActionPlan:   []string{"Retry with a clearer, well-lit photo of the affected area"},
		Treatments: model.Treatments{
			Organic:  []string{"Consult a local agricultural expert"},
			Chemical: []string{},
			IPM:      []string{},
			Cultural: []string{},
		},
		Tips:           []string{"Capture leaves and stems up close, avoiding shadows"},
		YieldImpact:    "Unknown",
		SpreadRisk:     "Unknown",
		RecoveryChance: "Unknown",
		Fallback:       true,
		RawText:        raw,
	}
	result.Normalize()
	return result
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx != -1 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// firstJSONObject returns the first brace-balanced object in s, respecting
// strings and escapes.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
