package scrapejob

import "time"

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const (
	SmartModeDisabled   = "disabled"
	SmartModeFallback   = "fallback"
	SmartModeEnrichment = "enrichment"
)

type Job struct {
	ID       int64
	Source   string
	City     string
	Industry string

	Status   string
	Progress float64

	StartedAt   *time.Time
	CompletedAt *time.Time

	ResultsCount     int
	NewCompanies     int
	UpdatedCompanies int
	ErrorsCount      int
	ErrorMessage     string

	Stats           map[string]any
	DurationSeconds float64

	Config Config

	CreatedAt time.Time
}

func (j *Job) Terminal() bool {
	if j == nil {
		return false
	}
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Config carries the per-job knobs the worker recognizes.
type Config struct {
	SourceName                string `json:"source_name"                 validate:"required"`
	City                      string `json:"city"`
	Industry                  string `json:"industry"`
	MaxPages                  int    `json:"max_pages"                   validate:"gte=0"`
	UseAnonymizer             bool   `json:"use_anonymizer"`
	EnableSmartScraper        bool   `json:"enable_smart_scraper"`
	SmartScraperMode          string `json:"smart_scraper_mode"          validate:"omitempty,oneof=disabled fallback enrichment"`
	SmartScraperMaxSites      int    `json:"smart_scraper_max_sites"     validate:"omitempty,gt=0"`
	UseAI                     bool   `json:"use_ai"`
	CancellationCheckInterval int    `json:"cancellation_check_interval" validate:"omitempty,gte=1"`
}
