package conf

const (
	APP_NAME = "sprout"
	APP_DESC = "Multi-tenant gateway for AI plant disease analysis"
)

// Branding is attached to every tenant-facing response body.
const Branding = "Powered by Plant Saathi AI"

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	Author    = "bestruirui"
	Repo      = "https://github.com/bestruirui/sprout"
)
