package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"
)

// CityLister exposes the distinct cities with active companies so the scan
// can shard work per city.
type CityLister interface {
	ListCities(ctx context.Context) ([]string, error)
}

// ScanReport summarizes one full-database dedup pass.
type ScanReport struct {
	CitiesScanned     int
	PairsCompared     int
	AutoMerged        int
	CandidatesCreated int
}

// Scanner runs the pairwise dedup comparison over the whole table, one city
// at a time, with a small worker pool over cities.
type Scanner struct {
	engine  *Engine
	cities  CityLister
	workers int
	logger  *log.Logger
}

func NewScanner(engine *Engine, cities CityLister, workers int, logger *log.Logger) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{
		engine:  engine,
		cities:  cities,
		workers: workers,
		logger:  logger,
	}
}

// Run scans every city. Per-city failures are logged and skipped so one bad
// city cannot abort the nightly pass.
func (s *Scanner) Run(ctx context.Context) (*ScanReport, error) {
	if s == nil || s.engine == nil || s.cities == nil {
		return nil, fmt.Errorf("scanner not configured")
	}

	cities, err := s.cities.ListCities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}

	jobs := make(chan string)
	var (
		mu     sync.Mutex
		report ScanReport
		wg     sync.WaitGroup
	)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for city := range jobs {
				cityReport, err := s.scanCity(ctx, city)
				if err != nil {
					if s.logger != nil {
						s.logger.Warn().Err(err).Str("city", city).Msg("dedup scan skipped city")
					}
					continue
				}
				mu.Lock()
				report.CitiesScanned++
				report.PairsCompared += cityReport.PairsCompared
				report.AutoMerged += cityReport.AutoMerged
				report.CandidatesCreated += cityReport.CandidatesCreated
				mu.Unlock()
			}
		}()
	}

	for _, city := range cities {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return &report, ctx.Err()
		case jobs <- city:
		}
	}
	close(jobs)
	wg.Wait()

	if s.logger != nil {
		s.logger.Info().
			Int("cities", report.CitiesScanned).
			Int("pairs", report.PairsCompared).
			Int("auto_merged", report.AutoMerged).
			Int("candidates", report.CandidatesCreated).
			Msg("dedup scan finished")
	}
	return &report, nil
}

func (s *Scanner) scanCity(ctx context.Context, city string) (*ScanReport, error) {
	companies, err := s.engine.companies.ListActiveByCity(ctx, city)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{}
	merged := make(map[int64]bool)

	for i := 0; i < len(companies); i++ {
		if merged[companies[i].ID] {
			continue
		}
		for j := i + 1; j < len(companies); j++ {
			if merged[companies[j].ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			m := s.engine.score(companies[i], companies[j])
			report.PairsCompared++

			switch {
			case m.OverallSimilarity >= s.engine.thresholds.AutoMerge*100:
				if err := s.engine.MergeCompanies(ctx, companies[i].ID, companies[j].ID); err != nil {
					if s.logger != nil {
						s.logger.Warn().Err(err).Int64("primary_id", companies[i].ID).Int64("duplicate_id", companies[j].ID).Msg("scan merge failed")
					}
					continue
				}
				merged[companies[j].ID] = true
				report.AutoMerged++
			case m.OverallSimilarity >= s.engine.thresholds.Candidate*100:
				if err := s.engine.CreateDuplicateCandidate(ctx, companies[i].ID, companies[j].ID, m); err != nil {
					if s.logger != nil {
						s.logger.Warn().Err(err).Int64("company_a", companies[i].ID).Int64("company_b", companies[j].ID).Msg("scan candidate failed")
					}
					continue
				}
				report.CandidatesCreated++
			}
		}
	}

	return report, nil
}
