package dto

import (
	"time"

	"leadharvest/internal/domain/scrapejob"
)

type CreateJobRequest struct {
	Source                    string `json:"source"`
	City                      string `json:"city"`
	Industry                  string `json:"industry"`
	MaxPages                  int    `json:"max_pages"`
	UseAnonymizer             bool   `json:"use_anonymizer"`
	EnableSmartScraper        bool   `json:"enable_smart_scraper"`
	SmartScraperMode          string `json:"smart_scraper_mode"`
	SmartScraperMaxSites      int    `json:"smart_scraper_max_sites"`
	UseAI                     bool   `json:"use_ai"`
	CancellationCheckInterval int    `json:"cancellation_check_interval"`
}

func (r CreateJobRequest) ToConfig() scrapejob.Config {
	return scrapejob.Config{
		SourceName:                r.Source,
		City:                      r.City,
		Industry:                  r.Industry,
		MaxPages:                  r.MaxPages,
		UseAnonymizer:             r.UseAnonymizer,
		EnableSmartScraper:        r.EnableSmartScraper,
		SmartScraperMode:          r.SmartScraperMode,
		SmartScraperMaxSites:      r.SmartScraperMaxSites,
		UseAI:                     r.UseAI,
		CancellationCheckInterval: r.CancellationCheckInterval,
	}
}

type JobResponse struct {
	ID               int64          `json:"id"`
	Source           string         `json:"source"`
	City             string         `json:"city"`
	Industry         string         `json:"industry"`
	Status           string         `json:"status"`
	Progress         float64        `json:"progress"`
	StartedAt        string         `json:"started_at,omitempty"`
	CompletedAt      string         `json:"completed_at,omitempty"`
	ResultsCount     int            `json:"results_count"`
	NewCompanies     int            `json:"new_companies"`
	UpdatedCompanies int            `json:"updated_companies"`
	ErrorsCount      int            `json:"errors_count"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Stats            map[string]any `json:"stats,omitempty"`
	DurationSeconds  float64        `json:"duration_seconds"`
	CreatedAt        string         `json:"created_at"`
}

func NewJobResponse(j *scrapejob.Job) JobResponse {
	out := JobResponse{
		ID:               j.ID,
		Source:           j.Source,
		City:             j.City,
		Industry:         j.Industry,
		Status:           j.Status,
		Progress:         j.Progress,
		ResultsCount:     j.ResultsCount,
		NewCompanies:     j.NewCompanies,
		UpdatedCompanies: j.UpdatedCompanies,
		ErrorsCount:      j.ErrorsCount,
		ErrorMessage:     j.ErrorMessage,
		Stats:            j.Stats,
		DurationSeconds:  j.DurationSeconds,
		CreatedAt:        j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		out.StartedAt = j.StartedAt.UTC().Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		out.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out
}
