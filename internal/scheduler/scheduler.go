package scheduler

import (
	"context"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"leadharvest/internal/dedup"
	"leadharvest/internal/domain/scrapejob"
	"leadharvest/internal/repository"
)

// staleJobCutoff is how long a job may sit in running before the cleanup
// pass declares it dead.
const staleJobCutoff = 6 * time.Hour

// Scheduler owns the recurring maintenance work: the nightly full dedup
// scan and the stale-job sweep.
type Scheduler struct {
	cron    *cron.Cron
	scanner *dedup.Scanner
	jobs    repository.ScrapingJobRepository
	logger  *log.Logger
}

func New(scanner *dedup.Scanner, jobs repository.ScrapingJobRepository, logger *log.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		scanner: scanner,
		jobs:    jobs,
		logger:  logger,
	}
}

// Start registers the schedules and launches the cron loop. Nightly scan
// at 03:00, stale sweep hourly.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 3 * * *", s.runDedupScan); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.sweepStaleJobs); err != nil {
		return err
	}
	s.cron.Start()
	if s.logger != nil {
		s.logger.Info().Msg("scheduler started")
	}
	return nil
}

func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runDedupScan() {
	if s.scanner == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	report, err := s.scanner.Run(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("nightly dedup scan failed")
		}
		return
	}
	if s.logger != nil {
		s.logger.Info().
			Int("cities", report.CitiesScanned).
			Int("auto_merged", report.AutoMerged).
			Int("candidates", report.CandidatesCreated).
			Msg("nightly dedup scan done")
	}
}

// sweepStaleJobs fails jobs whose worker died without finalizing.
func (s *Scheduler) sweepStaleJobs() {
	if s.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stale, err := s.jobs.ListStaleRunning(ctx, staleJobCutoff)
	if err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("stale job sweep failed")
		}
		return
	}

	for _, job := range stale {
		now := time.Now().UTC()
		job.Status = scrapejob.StatusFailed
		job.Progress = 100
		job.ErrorMessage = "Job abandoned by worker"
		job.CompletedAt = &now
		if job.StartedAt != nil {
			job.DurationSeconds = now.Sub(*job.StartedAt).Seconds()
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			if s.logger != nil {
				s.logger.Warn().Err(err).Int64("job_id", job.ID).Msg("stale job update failed")
			}
			continue
		}
		if s.logger != nil {
			s.logger.Warn().Int64("job_id", job.ID).Msg("stale running job failed")
		}
	}
}
