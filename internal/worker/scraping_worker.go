package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"leadharvest/internal/domain/company"
	"leadharvest/internal/domain/scrapejob"
	"leadharvest/internal/repository"
	"leadharvest/internal/scraper"
	"leadharvest/internal/ws"
)

// Progress phase boundaries: the directory scrape owns [0, 80], the smart
// scraper [80, 90], result processing the rest.
const (
	scrapePhaseCeiling = 80.0
	smartPhaseCeiling  = 90.0
)

const defaultCancellationInterval = 10

var progressMilestones = []float64{20, 40, 60, 80}

// Worker executes one scraping job end to end: scrape, smart-scrape,
// validate, normalize, upsert, dedup, finalize.
type Worker struct {
	jobs       JobStore
	companies  CompanyStore
	dedup      DuplicateEngine
	runners    RunnerFactory
	enrichers  EnricherFactory
	validator  Validator
	normalizer Normalizer
	dispatcher Dispatcher
	metrics    Metrics
	alerter    Alerter
	logger     *log.Logger
}

func New(
	jobs JobStore,
	companies CompanyStore,
	dedupEngine DuplicateEngine,
	runners RunnerFactory,
	enrichers EnricherFactory,
	validator Validator,
	normalizer Normalizer,
	dispatcher Dispatcher,
	metrics Metrics,
	alerter Alerter,
	logger *log.Logger,
) *Worker {
	return &Worker{
		jobs:       jobs,
		companies:  companies,
		dedup:      dedupEngine,
		runners:    runners,
		enrichers:  enrichers,
		validator:  validator,
		normalizer: normalizer,
		dispatcher: dispatcher,
		metrics:    metrics,
		alerter:    alerter,
		logger:     logger,
	}
}

// jobState tracks the per-run counters that end up on the job row.
type jobState struct {
	job            *scrapejob.Job
	results        []*scraper.Result
	processed      int
	newCount       int
	updatedCount   int
	errorsCount    int
	autoMerged     int
	candidates     int
	cancelled      bool
	lastProgress   float64
	milestonesSeen map[float64]bool
}

// Run executes jobID. A missing job is a no-op; every other path leaves
// the job row in a terminal state.
func (w *Worker) Run(ctx context.Context, jobID int64) (err error) {
	job, loadErr := w.jobs.GetByID(ctx, jobID)
	if loadErr != nil {
		if errors.Is(loadErr, repository.ErrJobNotFound) {
			if w.logger != nil {
				w.logger.Warn().Int64("job_id", jobID).Msg("job not found, nothing to run")
			}
			return nil
		}
		return fmt.Errorf("load job %d: %w", jobID, loadErr)
	}
	if job.Terminal() {
		if w.logger != nil {
			w.logger.Info().Int64("job_id", jobID).Str("status", job.Status).Msg("job already terminal, skipping")
		}
		return nil
	}

	now := time.Now().UTC()
	job.Status = scrapejob.StatusRunning
	job.Progress = 0
	job.StartedAt = &now
	if updateErr := w.jobs.Update(ctx, job); updateErr != nil {
		return fmt.Errorf("mark job %d running: %w", jobID, updateErr)
	}
	ws.NotifyJobUpdate(job.ID, job.Source, job.Status, job.Progress)

	if w.metrics != nil {
		w.metrics.JobStarted(job.Source)
	}
	defer func() {
		if w.metrics != nil {
			w.metrics.JobFinished(job.Source)
		}
	}()

	state := &jobState{job: job, milestonesSeen: make(map[float64]bool)}

	defer func() {
		if r := recover(); r != nil {
			w.failJob(ctx, state, fmt.Sprintf("panic: %v", r))
			err = nil
		}
	}()

	if runErr := w.run(ctx, state); runErr != nil {
		w.failJob(ctx, state, runErr.Error())
		return nil
	}
	return nil
}

func (w *Worker) run(ctx context.Context, state *jobState) error {
	job := state.job

	runner, err := w.runners.ForSource(job.Config)
	if err != nil {
		if errors.Is(err, scraper.ErrUnknownSource) {
			return fmt.Errorf("unknown scraping source %q", job.Config.SourceName)
		}
		return fmt.Errorf("resolve source %q: %w", job.Config.SourceName, err)
	}

	results, err := runner.Scrape(ctx, job.City, job.Industry, job.Config.MaxPages, func(currentPage, totalPages int) {
		w.scrapeProgress(ctx, state, currentPage, totalPages)
	})
	if err != nil {
		return fmt.Errorf("scrape %s: %w", job.Source, err)
	}
	state.results = results
	w.advanceProgress(ctx, state, scrapePhaseCeiling)

	w.runSmartPhase(ctx, state)

	if err := w.processResults(ctx, state); err != nil {
		return err
	}

	return w.finalize(ctx, state, runner.GetStats())
}

// scrapeProgress maps page progress onto [0, 80], persists it and logs
// each milestone once.
func (w *Worker) scrapeProgress(ctx context.Context, state *jobState, currentPage, totalPages int) {
	if totalPages <= 0 {
		return
	}
	p := float64(currentPage) / float64(totalPages) * scrapePhaseCeiling
	w.advanceProgress(ctx, state, p)

	for _, m := range progressMilestones {
		if p >= m && !state.milestonesSeen[m] {
			state.milestonesSeen[m] = true
			if w.logger != nil {
				w.logger.Info().
					Int64("job_id", state.job.ID).
					Float64("progress", m).
					Int("page", currentPage).
					Int("total_pages", totalPages).
					Msg("scraping progress")
			}
		}
	}
}

// advanceProgress persists progress if it moved forward. Progress never
// goes backwards outside the cancellation clamp.
func (w *Worker) advanceProgress(ctx context.Context, state *jobState, p float64) {
	if p <= state.lastProgress {
		return
	}
	state.lastProgress = p
	state.job.Progress = p
	if err := w.jobs.UpdateProgress(ctx, state.job.ID, p); err != nil && w.logger != nil {
		w.logger.Warn().Err(err).Int64("job_id", state.job.ID).Msg("progress update failed")
	}
	ws.NotifyJobUpdate(state.job.ID, state.job.Source, state.job.Status, p)
}

// runSmartPhase applies the configured smart-scraper mode. Smart failures
// are soft: the phase logs, resets progress to the scrape ceiling and the
// pipeline continues with the directory results.
func (w *Worker) runSmartPhase(ctx context.Context, state *jobState) {
	cfg := state.job.Config
	if !cfg.EnableSmartScraper || cfg.SmartScraperMode == scrapejob.SmartModeDisabled || cfg.SmartScraperMode == "" {
		return
	}
	if w.enrichers == nil {
		return
	}
	enricher := w.enrichers.ForJob(cfg)
	if enricher == nil {
		return
	}

	progress := func(done, total int) {
		if total <= 0 {
			return
		}
		p := scrapePhaseCeiling + float64(done)/float64(total)*(smartPhaseCeiling-scrapePhaseCeiling)
		w.advanceProgress(ctx, state, p)
	}

	switch cfg.SmartScraperMode {
	case scrapejob.SmartModeFallback:
		if len(state.results) > 0 {
			return
		}
		discovered, err := enricher.DiscoverCompanies(ctx, state.job.City, state.job.Industry, progress)
		if err != nil {
			if w.logger != nil {
				w.logger.Warn().Err(err).Int64("job_id", state.job.ID).Msg("smart fallback failed")
			}
			state.lastProgress = scrapePhaseCeiling
			state.job.Progress = scrapePhaseCeiling
			return
		}
		state.results = append(state.results, discovered...)

	case scrapejob.SmartModeEnrichment:
		if err := enricher.EnrichResults(ctx, state.results, progress); err != nil {
			if w.logger != nil {
				w.logger.Warn().Err(err).Int64("job_id", state.job.ID).Msg("smart enrichment failed")
			}
			state.lastProgress = scrapePhaseCeiling
			state.job.Progress = scrapePhaseCeiling
		}
	}
}

// processResults runs the validate/normalize/upsert/dedup loop, polling
// for cancellation every N results.
func (w *Worker) processResults(ctx context.Context, state *jobState) error {
	interval := state.job.Config.CancellationCheckInterval
	if interval <= 0 {
		interval = defaultCancellationInterval
	}

	total := len(state.results)
	for i, r := range state.results {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i > 0 && i%interval == 0 {
			cancelled, err := w.jobs.IsCancelled(ctx, state.job.ID)
			if err != nil && w.logger != nil {
				w.logger.Warn().Err(err).Int64("job_id", state.job.ID).Msg("cancellation check failed")
			}
			if cancelled {
				w.markCancelled(ctx, state, total)
				return nil
			}
		}

		w.processResult(ctx, state, r)

		if total > 0 {
			p := smartPhaseCeiling + float64(i+1)/float64(total)*(99-smartPhaseCeiling)
			if p > 99 {
				p = 99
			}
			w.advanceProgress(ctx, state, p)
		}
	}
	return nil
}

func (w *Worker) processResult(ctx context.Context, state *jobState, r *scraper.Result) {
	raw := r.Fields()

	validated, err := w.validator.Validate(raw)
	if err != nil {
		state.errorsCount++
		if w.logger != nil {
			w.logger.Debug().Err(err).Int64("job_id", state.job.ID).Msg("result rejected")
		}
		return
	}

	normalized := w.normalizer.Normalize(validated)

	// The name and city keys decide the upsert identity: validated wins
	// over raw, raw over normalized.
	record := make(map[string]any, len(normalized))
	for k, v := range normalized {
		record[k] = v
	}
	for _, key := range []string{"company_name", "city"} {
		if v, ok := validated[key]; ok && str(v) != "" {
			record[key] = v
		} else if v, ok := raw[key]; ok && str(v) != "" {
			record[key] = v
		}
	}

	filtered := make(map[string]any, len(record))
	extra := make(map[string]any)
	for k, v := range record {
		if company.IsColumn(k) {
			filtered[k] = v
		} else {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		filtered["extra_data"] = extra
	}
	if len(filtered) == 0 {
		state.errorsCount++
		return
	}

	name := str(filtered["company_name"])
	city := str(filtered["city"])

	existing, err := w.companies.FindByNameCity(ctx, name, city)
	switch {
	case err == nil:
		if err := w.companies.UpdateFields(ctx, existing.ID, filtered); err != nil {
			state.errorsCount++
			if w.logger != nil {
				w.logger.Warn().Err(err).Int64("company_id", existing.ID).Msg("company update failed")
			}
			return
		}
		state.updatedCount++
		state.processed++

	case errors.Is(err, repository.ErrCompanyNotFound):
		id, err := w.companies.Insert(ctx, filtered)
		if err != nil {
			state.errorsCount++
			if w.logger != nil {
				w.logger.Warn().Err(err).Str("company", name).Msg("company insert failed")
			}
			return
		}
		state.processed++
		if !w.realtimeDedup(ctx, state, id, filtered) {
			state.newCount++
		}

	default:
		state.errorsCount++
		if w.logger != nil {
			w.logger.Warn().Err(err).Str("company", name).Msg("company lookup failed")
		}
	}
}

// realtimeDedup scores the freshly inserted company against its city and
// either merges it away or queues review candidates. Returns true when the
// row was merged into an existing company.
func (w *Worker) realtimeDedup(ctx context.Context, state *jobState, newID int64, fields map[string]any) bool {
	if w.dedup == nil {
		return false
	}

	probe := &company.Company{
		ID:          newID,
		CompanyName: str(fields["company_name"]),
		City:        str(fields["city"]),
		Address:     str(fields["address"]),
		Phone:       str(fields["phone"]),
		Website:     str(fields["website"]),
	}

	matches, err := w.dedup.FindDuplicates(ctx, probe)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn().Err(err).Int64("company_id", newID).Msg("duplicate check failed")
		}
		return false
	}

	thresholds := w.dedup.Thresholds()
	for _, m := range matches {
		if m.OverallSimilarity >= thresholds.AutoMerge*100 {
			if err := w.dedup.MergeCompanies(ctx, m.Company.ID, newID); err != nil {
				if w.logger != nil {
					w.logger.Warn().Err(err).Int64("primary_id", m.Company.ID).Int64("duplicate_id", newID).Msg("auto merge failed")
				}
				continue
			}
			state.autoMerged++
			if w.dispatcher != nil {
				w.dispatcher.Dispatch("duplicate.merged", map[string]any{
					"job_id":       state.job.ID,
					"primary_id":   m.Company.ID,
					"duplicate_id": newID,
					"similarity":   m.OverallSimilarity,
				})
			}
			return true
		}
		if m.OverallSimilarity >= thresholds.Candidate*100 {
			if err := w.dedup.CreateDuplicateCandidate(ctx, newID, m.Company.ID, m); err != nil {
				if w.logger != nil {
					w.logger.Warn().Err(err).Int64("company_a", newID).Int64("company_b", m.Company.ID).Msg("candidate create failed")
				}
				continue
			}
			state.candidates++
			if w.dispatcher != nil {
				w.dispatcher.Dispatch("duplicate.detected", map[string]any{
					"job_id":     state.job.ID,
					"company_a":  newID,
					"company_b":  m.Company.ID,
					"similarity": m.OverallSimilarity,
				})
			}
		}
	}
	return false
}

// markCancelled estimates how far the job got and persists the cancelled
// state. Cancelled progress never reads 100.
func (w *Worker) markCancelled(ctx context.Context, state *jobState, total int) {
	job := state.job

	progress := state.lastProgress
	if progress <= 0 {
		if total > 0 {
			progress = float64(state.processed) / float64(total) * 100
		} else {
			progress = float64(state.processed) * 10
		}
	}
	if progress > 99 {
		progress = 99
	}

	now := time.Now().UTC()
	job.Status = scrapejob.StatusCancelled
	job.Progress = progress
	job.CompletedAt = &now
	w.applyCounters(state)
	if job.StartedAt != nil {
		job.DurationSeconds = now.Sub(*job.StartedAt).Seconds()
	}

	if err := w.jobs.Update(ctx, job); err != nil && w.logger != nil {
		w.logger.Warn().Err(err).Int64("job_id", job.ID).Msg("cancel persist failed")
	}
	state.cancelled = true

	if w.metrics != nil {
		w.metrics.RecordJobMetrics(job)
	}
	ws.NotifyJobUpdate(job.ID, job.Source, job.Status, job.Progress)
	if w.logger != nil {
		w.logger.Info().Int64("job_id", job.ID).Float64("progress", job.Progress).Int("processed", state.processed).Msg("job cancelled")
	}
}

func (w *Worker) applyCounters(state *jobState) {
	job := state.job
	job.ResultsCount = state.processed
	job.NewCompanies = state.newCount
	job.UpdatedCompanies = state.updatedCount
	job.ErrorsCount = state.errorsCount
	if job.Stats == nil {
		job.Stats = map[string]any{}
	}
	job.Stats["auto_merged_duplicates"] = state.autoMerged
	job.Stats["duplicate_candidates_created"] = state.candidates
}

// finalize writes the terminal job row. Zero processed results is a
// failure; anything else completes at 100.
func (w *Worker) finalize(ctx context.Context, state *jobState, stats scraper.Stats) error {
	if state.cancelled {
		return nil
	}
	job := state.job

	now := time.Now().UTC()
	job.CompletedAt = &now
	w.applyCounters(state)
	job.Stats["scraper_requests"] = stats.Requests
	job.Stats["scraper_errors"] = stats.Errors
	if job.StartedAt != nil {
		job.DurationSeconds = now.Sub(*job.StartedAt).Seconds()
	}

	if state.processed == 0 {
		job.Status = scrapejob.StatusFailed
		job.Progress = 100
		job.ErrorMessage = "Scraping returned no results"
	} else {
		job.Status = scrapejob.StatusCompleted
		job.Progress = 100
		job.ErrorMessage = ""
	}

	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("finalize job %d: %w", job.ID, err)
	}

	if w.metrics != nil {
		w.metrics.RecordJobMetrics(job)
	}
	if w.dispatcher != nil && job.Status == scrapejob.StatusCompleted {
		w.dispatcher.Dispatch("job.completed", map[string]any{
			"job_id":            job.ID,
			"source":            job.Source,
			"status":            job.Status,
			"results_count":     job.ResultsCount,
			"new_companies":     job.NewCompanies,
			"updated_companies": job.UpdatedCompanies,
			"errors_count":      job.ErrorsCount,
		})
	}
	ws.NotifyJobUpdate(job.ID, job.Source, job.Status, job.Progress)

	if w.logger != nil {
		w.logger.Info().
			Int64("job_id", job.ID).
			Str("status", job.Status).
			Int("results", job.ResultsCount).
			Int("new", job.NewCompanies).
			Int("updated", job.UpdatedCompanies).
			Int("errors", job.ErrorsCount).
			Float64("duration_seconds", job.DurationSeconds).
			Msg("job finished")
	}
	return nil
}

// failJob records a hard failure: terminal row, metrics, alert.
func (w *Worker) failJob(ctx context.Context, state *jobState, message string) {
	job := state.job

	now := time.Now().UTC()
	job.Status = scrapejob.StatusFailed
	job.Progress = 100
	job.ErrorMessage = message
	job.CompletedAt = &now
	w.applyCounters(state)
	if job.StartedAt != nil {
		job.DurationSeconds = now.Sub(*job.StartedAt).Seconds()
	}

	if err := w.jobs.Update(ctx, job); err != nil && w.logger != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failure persist failed")
	}

	if w.metrics != nil {
		w.metrics.RecordJobMetrics(job)
	}
	if w.alerter != nil {
		w.alerter.NotifyJobFailure(ctx, job)
	}
	ws.NotifyJobUpdate(job.ID, job.Source, job.Status, job.Progress)

	if w.logger != nil {
		w.logger.Error().Int64("job_id", job.ID).Str("error", message).Msg("job failed")
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
