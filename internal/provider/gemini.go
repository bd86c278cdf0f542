package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bestruirui/sprout/internal/client"
	"github.com/bestruirui/sprout/internal/conf"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/utils/xurl"
)

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
	Error         *apiError      `json:"error"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

const analysisPrompt = `You are an expert plant pathologist. Analyze the plant image and respond with ONLY a JSON object, no markdown, using exactly these fields:
{"disease_name": string, "confidence": number between 0 and 1, "disease_stage": string, "symptoms": [string], "action_plan": [string], "treatments": {"organic": [string], "chemical": [string], "ipm": [string], "cultural": [string]}, "recommended_videos": [string], "faqs": [{"question": string, "answer": string}], "tips": [string], "yield_impact": string, "spread_risk": string, "recovery_chance": string}
If the image does not show a plant, set disease_name to "Not a plant" and confidence to 0.`

// Generate calls Gemini generateContent with the tenant's own key and returns
// the raw candidate text plus the total token count (0 when the reply carries
// no usageMetadata).
func Generate(ctx context.Context, geminiKey string, req model.AnalyzeRequest) (string, int, error) {
	mimeType, data := imagePayload(req.Image)

	prompt := analysisPrompt
	if extra := contextBlock(req); extra != "" {
		prompt += "\n\nAdditional context:\n" + extra
	}

	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: mimeType, Data: data}},
			},
		}},
		GenerationConfig: generationConfig{Temperature: 0.2, MaxOutputTokens: 4096},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal upstream request: %w", err)
	}

	timeout := time.Duration(conf.AppConfig.Upstream.TimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(conf.AppConfig.Upstream.BaseURL, "/"), conf.AppConfig.Upstream.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("failed to build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// key travels in a header so it can never show up in error messages
	// carrying the URL
	httpReq.Header.Set("x-goog-api-key", geminiKey)

	httpClient, err := client.Get()
	if err != nil {
		return "", 0, err
	}
	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("upstream request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read upstream response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, fmt.Errorf("upstream returned status %d with unreadable body", httpResp.StatusCode)
	}
	if parsed.Error != nil {
		return "", 0, fmt.Errorf("upstream error %d: %s", parsed.Error.Code, parsed.Error.Status)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("upstream returned status %d", httpResp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", 0, fmt.Errorf("upstream returned no candidates")
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	tokens := 0
	if parsed.UsageMetadata != nil {
		tokens = parsed.UsageMetadata.TotalTokenCount
	}
	return text.String(), tokens, nil
}

// imagePayload splits a data URL into its media type and base64 body; bare
// base64 is assumed to be a jpeg.
func imagePayload(image string) (string, string) {
	if xurl.IsDataURL(image) {
		mt := xurl.ExtractMediaTypeFromDataURL(image)
		if mt == "" {
			mt = "image/jpeg"
		}
		return mt, xurl.ExtractBase64FromDataURL(image)
	}
	return "image/jpeg", image
}

func contextBlock(req model.AnalyzeRequest) string {
	var lines []string
	if req.Crop != "" {
		lines = append(lines, "Crop: "+req.Crop)
	}
	if req.Location != "" {
		lines = append(lines, "Location: "+req.Location)
	}
	if req.Symptoms != "" {
		lines = append(lines, "Reported symptoms: "+req.Symptoms)
	}
	return strings.Join(lines, "\n")
}
