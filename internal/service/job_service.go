package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"leadharvest/internal/domain/scrapejob"
	"leadharvest/internal/repository"
	"leadharvest/internal/scraper"
)

// JobRunner executes a created job; the worker implements it.
type JobRunner interface {
	Run(ctx context.Context, jobID int64) error
}

// JobService validates job requests, persists them and hands them to the
// worker in the background.
type JobService struct {
	jobs     repository.ScrapingJobRepository
	runner   JobRunner
	validate *validator.Validate
	logger   *log.Logger
}

func NewJobService(jobs repository.ScrapingJobRepository, runner JobRunner, logger *log.Logger) *JobService {
	return &JobService{
		jobs:     jobs,
		runner:   runner,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateAndStart persists the job and launches the worker. The returned job
// is in pending state; clients follow progress over the websocket or by
// polling.
func (s *JobService) CreateAndStart(ctx context.Context, cfg scrapejob.Config) (*scrapejob.Job, error) {
	if s == nil || s.jobs == nil {
		return nil, fmt.Errorf("job service not configured")
	}
	if err := s.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}
	if _, err := scraper.Lookup(cfg.SourceName); err != nil {
		return nil, err
	}

	job, err := s.jobs.Create(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.runner != nil {
		go func(jobID int64) {
			if err := s.runner.Run(context.Background(), jobID); err != nil && s.logger != nil {
				s.logger.Error().Err(err).Int64("job_id", jobID).Msg("job run failed")
			}
		}(job.ID)
	}
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id int64) (*scrapejob.Job, error) {
	return s.jobs.GetByID(ctx, id)
}

// Cancel flags the job; the worker notices at its next cancellation poll.
func (s *JobService) Cancel(ctx context.Context, id int64) error {
	return s.jobs.RequestCancel(ctx, id)
}
