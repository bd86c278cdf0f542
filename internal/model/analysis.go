package model

// AnalyzeRequest is the tenant-facing analysis payload. The image is either a
// data URL or raw base64; multipart uploads are converted before this struct
// is filled.
type AnalyzeRequest struct {
	Image    string `json:"image"`
	Crop     string `json:"crop,omitempty"`
	Location string `json:"location,omitempty"`
	Symptoms string `json:"symptoms,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

type Treatments struct {
	Organic  []string `json:"organic"`
	Chemical []string `json:"chemical"`
	IPM      []string `json:"ipm"`
	Cultural []string `json:"cultural"`
}

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnalysisResult is the structured diagnosis returned to the tenant. When the
// upstream reply cannot be parsed, a fallback result with Fallback=true and
// the raw text preserved is returned instead of an error.
type AnalysisResult struct {
	DiseaseName       string     `json:"disease_name"`
	Confidence        float64    `json:"confidence"`
	DiseaseStage      string     `json:"disease_stage"`
	Symptoms          []string   `json:"symptoms"`
	ActionPlan        []string   `json:"action_plan"`
	Treatments        Treatments `json:"treatments"`
	RecommendedVideos []string   `json:"recommended_videos"`
	FAQs              []FAQ      `json:"faqs"`
	Tips              []string   `json:"tips"`
	YieldImpact       string     `json:"yield_impact"`
	SpreadRisk        string     `json:"spread_risk"`
	RecoveryChance    string     `json:"recovery_chance"`
	Fallback          bool       `json:"fallback,omitempty"`
	RawText           string     `json:"raw_text,omitempty"`
}

// Normalize replaces nil slices so every fixed field marshals as an array,
// never null. Tenant integrations iterate these without null checks.
func (r *AnalysisResult) Normalize() {
	if r.Symptoms == nil {
		r.Symptoms = []string{}
	}
	if r.ActionPlan == nil {
		r.ActionPlan = []string{}
	}
	if r.Treatments.Organic == nil {
		r.Treatments.Organic = []string{}
	}
	if r.Treatments.Chemical == nil {
		r.Treatments.Chemical = []string{}
	}
	if r.Treatments.IPM == nil {
		r.Treatments.IPM = []string{}
	}
	if r.Treatments.Cultural == nil {
		r.Treatments.Cultural = []string{}
	}
	if r.RecommendedVideos == nil {
		r.RecommendedVideos = []string{}
	}
	if r.FAQs == nil {
		r.FAQs = []FAQ{}
	}
	if r.Tips == nil {
		r.Tips = []string{}
	}
}

// AnalysisRecord archives one completed diagnosis for later review.
type AnalysisRecord struct {
	ID        int64          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CompanyID string         `json:"company_id" gorm:"index;size:36"`
	ImageURL  string         `json:"image_url,omitempty"`
	Result    AnalysisResult `json:"result" gorm:"serializer:json"`
	Time      int64          `json:"time" gorm:"index"`
}

// AnalyzeResponse is the tenant-facing success body: the diagnosis fields at
// the top level plus branding and a quota snapshot.
type AnalyzeResponse struct {
	AnalysisResult
	Branding       string `json:"branding"`
	RemainingToday int    `json:"remaining_today"`
	Overage        bool   `json:"overage"`
	ImageURL       string `json:"image_url,omitempty"`
}
