package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"leadharvest/internal/database"
	"leadharvest/internal/domain/scrapejob"
)

var ErrJobNotFound = errors.New("scraping job not found")

type ScrapingJobRepository interface {
	Create(ctx context.Context, cfg scrapejob.Config) (*scrapejob.Job, error)
	GetByID(ctx context.Context, id int64) (*scrapejob.Job, error)
	Update(ctx context.Context, job *scrapejob.Job) error
	UpdateProgress(ctx context.Context, id int64, progress float64) error
	IsCancelled(ctx context.Context, id int64) (bool, error)
	RequestCancel(ctx context.Context, id int64) error
	ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]*scrapejob.Job, error)
}

type PostgresScrapingJobRepository struct {
	db database.DB
}

func NewPostgresScrapingJobRepository(db database.DB) *PostgresScrapingJobRepository {
	return &PostgresScrapingJobRepository{db: db}
}

const jobColumns = `id, source, COALESCE(city, ''), COALESCE(industry, ''), status, progress,
	started_at, completed_at, results_count, new_companies, updated_companies,
	errors_count, COALESCE(error_message, ''), COALESCE(stats, '{}'::jsonb),
	duration_seconds, COALESCE(config, '{}'::jsonb), created_at`

func scanJob(row database.Row) (*scrapejob.Job, error) {
	var (
		j      scrapejob.Job
		stats  []byte
		config []byte
	)
	err := row.Scan(
		&j.ID, &j.Source, &j.City, &j.Industry, &j.Status, &j.Progress,
		&j.StartedAt, &j.CompletedAt, &j.ResultsCount, &j.NewCompanies, &j.UpdatedCompanies,
		&j.ErrorsCount, &j.ErrorMessage, &stats,
		&j.DurationSeconds, &config, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &j.Stats); err != nil {
			return nil, fmt.Errorf("decode stats for job %d: %w", j.ID, err)
		}
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &j.Config); err != nil {
			return nil, fmt.Errorf("decode config for job %d: %w", j.ID, err)
		}
	}
	return &j, nil
}

func (r *PostgresScrapingJobRepository) Create(ctx context.Context, cfg scrapejob.Config) (*scrapejob.Job, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode job config: %w", err)
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO scraping_jobs (source, city, industry, status, progress, config, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5, NOW())
		 RETURNING `+jobColumns,
		cfg.SourceName, cfg.City, cfg.Industry, scrapejob.StatusPending, configJSON,
	)
	return scanJob(row)
}

func (r *PostgresScrapingJobRepository) GetByID(ctx context.Context, id int64) (*scrapejob.Job, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM scraping_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows || errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return j, nil
}

// Update persists the whole mutable state of a job in one statement. The
// worker calls it at every lifecycle transition.
func (r *PostgresScrapingJobRepository) Update(ctx context.Context, job *scrapejob.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	statsJSON, err := json.Marshal(job.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	affected, err := r.db.Exec(ctx,
		`UPDATE scraping_jobs SET
			status = $2, progress = $3, started_at = $4, completed_at = $5,
			results_count = $6, new_companies = $7, updated_companies = $8,
			errors_count = $9, error_message = NULLIF($10, ''), stats = $11,
			duration_seconds = $12
		 WHERE id = $1`,
		job.ID, job.Status, job.Progress, job.StartedAt, job.CompletedAt,
		job.ResultsCount, job.NewCompanies, job.UpdatedCompanies,
		job.ErrorsCount, job.ErrorMessage, statsJSON,
		job.DurationSeconds,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PostgresScrapingJobRepository) UpdateProgress(ctx context.Context, id int64, progress float64) error {
	affected, err := r.db.Exec(ctx,
		`UPDATE scraping_jobs SET progress = $2 WHERE id = $1`,
		id, progress,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// IsCancelled is the poll the worker runs between result batches. A missing
// row reads as cancelled so an orphaned worker stops.
func (r *PostgresScrapingJobRepository) IsCancelled(ctx context.Context, id int64) (bool, error) {
	var status string
	row := r.db.QueryRow(ctx, `SELECT status FROM scraping_jobs WHERE id = $1`, id)
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows || errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	return status == scrapejob.StatusCancelled, nil
}

// RequestCancel flips a pending or running job to cancelled. Terminal jobs
// are left alone.
func (r *PostgresScrapingJobRepository) RequestCancel(ctx context.Context, id int64) error {
	affected, err := r.db.Exec(ctx,
		`UPDATE scraping_jobs SET status = $2
		 WHERE id = $1 AND status IN ($3, $4)`,
		id, scrapejob.StatusCancelled, scrapejob.StatusPending, scrapejob.StatusRunning,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ListStaleRunning finds jobs stuck in running longer than olderThan, for
// the scheduled cleanup pass.
func (r *PostgresScrapingJobRepository) ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]*scrapejob.Job, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs
		 WHERE status = $1 AND started_at < NOW() - $2::interval
		 ORDER BY started_at`,
		scrapejob.StatusRunning, fmt.Sprintf("%d seconds", int(olderThan.Seconds())),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*scrapejob.Job, 0)
	for rows.Next() {
		j, err := scanJob(rowsAdapter{rows})
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
