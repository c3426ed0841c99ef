package worker

import (
	"context"

	"leadharvest/internal/dedup"
	"leadharvest/internal/domain/company"
	"leadharvest/internal/domain/scrapejob"
	"leadharvest/internal/scraper"
)

// JobStore is the job persistence the worker drives.
type JobStore interface {
	GetByID(ctx context.Context, id int64) (*scrapejob.Job, error)
	Update(ctx context.Context, job *scrapejob.Job) error
	UpdateProgress(ctx context.Context, id int64, progress float64) error
	IsCancelled(ctx context.Context, id int64) (bool, error)
}

// CompanyStore is the upsert surface for scraped companies.
type CompanyStore interface {
	FindByNameCity(ctx context.Context, name, city string) (*company.Company, error)
	Insert(ctx context.Context, fields map[string]any) (int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
}

// DuplicateEngine is the realtime dedup check run after every insert.
type DuplicateEngine interface {
	FindDuplicates(ctx context.Context, c *company.Company) ([]dedup.Match, error)
	MergeCompanies(ctx context.Context, primaryID, duplicateID int64) error
	CreateDuplicateCandidate(ctx context.Context, companyAID, companyBID int64, m dedup.Match) error
	Thresholds() dedup.Thresholds
}

// SiteRunner runs the directory scrape for one job.
type SiteRunner interface {
	Scrape(ctx context.Context, city, industry string, maxPages int, progress func(currentPage, totalPages int)) ([]*scraper.Result, error)
	GetStats() scraper.Stats
}

// RunnerFactory resolves a job config to a configured runner. Unknown
// sources return scraper.ErrUnknownSource.
type RunnerFactory interface {
	ForSource(cfg scrapejob.Config) (SiteRunner, error)
}

// Enricher is the smart-scraper phase: fallback discovery when the
// directories came up empty, enrichment of what they returned otherwise.
type Enricher interface {
	EnrichResults(ctx context.Context, results []*scraper.Result, progress func(done, total int)) error
	DiscoverCompanies(ctx context.Context, city, industry string, progress func(done, total int)) ([]*scraper.Result, error)
}

// EnricherFactory builds a per-job enricher. A nil return disables the
// smart phase for that job.
type EnricherFactory interface {
	ForJob(cfg scrapejob.Config) Enricher
}

// Validator cleans a raw field map; the only hard error is a missing name.
type Validator interface {
	Validate(fields map[string]any) (map[string]any, error)
}

// Normalizer canonicalizes validated fields.
type Normalizer interface {
	Normalize(fields map[string]any) map[string]any
}

// Dispatcher delivers pipeline events; implementations must not block or
// fail the worker.
type Dispatcher interface {
	Dispatch(name string, payload map[string]any)
}

// Metrics records job lifecycle instrumentation.
type Metrics interface {
	JobStarted(source string)
	JobFinished(source string)
	RecordJobMetrics(job *scrapejob.Job)
}

// Alerter raises failure notifications; errors are its own problem.
type Alerter interface {
	NotifyJobFailure(ctx context.Context, job *scrapejob.Job)
}
