package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadharvest/internal/dedup"
	"leadharvest/internal/domain/company"
	"leadharvest/internal/domain/scrapejob"
	"leadharvest/internal/processor"
	"leadharvest/internal/repository"
	"leadharvest/internal/scraper"
)

type fakeJobStore struct {
	mu              sync.Mutex
	jobs            map[int64]*scrapejob.Job
	progressWrites  []float64
	cancelAfterPoll int
	polls           int
}

func newFakeJobStore(jobs ...*scrapejob.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: map[int64]*scrapejob.Job{}, cancelAfterPoll: -1}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) GetByID(ctx context.Context, id int64) (*scrapejob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *fakeJobStore) Update(ctx context.Context, job *scrapejob.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) UpdateProgress(ctx context.Context, id int64, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressWrites = append(s.progressWrites, progress)
	if j, ok := s.jobs[id]; ok {
		j.Progress = progress
	}
	return nil
}

func (s *fakeJobStore) IsCancelled(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.cancelAfterPoll >= 0 && s.polls > s.cancelAfterPoll {
		return true, nil
	}
	return false, nil
}

func (s *fakeJobStore) stored(id int64) *scrapejob.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

type fakeCompanyStore struct {
	mu      sync.Mutex
	nextID  int64
	byKey   map[string]*company.Company
	inserts []map[string]any
	updates []map[string]any
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{nextID: 100, byKey: map[string]*company.Company{}}
}

func companyKey(name, city string) string {
	return name + "|" + city
}

func (s *fakeCompanyStore) FindByNameCity(ctx context.Context, name, city string) (*company.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byKey[companyKey(name, city)]; ok {
		return c, nil
	}
	return nil, repository.ErrCompanyNotFound
}

func (s *fakeCompanyStore) Insert(ctx context.Context, fields map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	name, _ := fields["company_name"].(string)
	city, _ := fields["city"].(string)
	s.byKey[companyKey(name, city)] = &company.Company{ID: s.nextID, CompanyName: name, City: city}
	s.inserts = append(s.inserts, fields)
	return s.nextID, nil
}

func (s *fakeCompanyStore) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, fields)
	return nil
}

type fakeDedup struct {
	matches    []dedup.Match
	findErr    error
	merges     [][2]int64
	candidates [][2]int64
}

func (d *fakeDedup) FindDuplicates(ctx context.Context, c *company.Company) ([]dedup.Match, error) {
	if d.findErr != nil {
		return nil, d.findErr
	}
	return d.matches, nil
}

func (d *fakeDedup) MergeCompanies(ctx context.Context, primaryID, duplicateID int64) error {
	d.merges = append(d.merges, [2]int64{primaryID, duplicateID})
	return nil
}

func (d *fakeDedup) CreateDuplicateCandidate(ctx context.Context, a, b int64, m dedup.Match) error {
	d.candidates = append(d.candidates, [2]int64{a, b})
	return nil
}

func (d *fakeDedup) Thresholds() dedup.Thresholds {
	return dedup.Thresholds{Candidate: 0.80, AutoMerge: 0.95}
}

type fakeRunner struct {
	results []*scraper.Result
	err     error
	panics  bool
	pages   int
}

func (r *fakeRunner) Scrape(ctx context.Context, city, industry string, maxPages int, progress func(int, int)) ([]*scraper.Result, error) {
	if r.panics {
		panic("browser crashed")
	}
	if r.pages > 0 && progress != nil {
		for p := 1; p <= r.pages; p++ {
			progress(p, r.pages)
		}
	}
	return r.results, r.err
}

func (r *fakeRunner) GetStats() scraper.Stats {
	return scraper.Stats{Requests: len(r.results), Successes: len(r.results)}
}

type fakeRunnerFactory struct {
	runner *fakeRunner
}

func (f *fakeRunnerFactory) ForSource(cfg scrapejob.Config) (SiteRunner, error) {
	if _, err := scraper.Lookup(cfg.SourceName); err != nil {
		return nil, err
	}
	return f.runner, nil
}

type fakeEnricher struct {
	discovered  []*scraper.Result
	discoverErr error
	enriched    bool
}

func (e *fakeEnricher) EnrichResults(ctx context.Context, results []*scraper.Result, progress func(int, int)) error {
	e.enriched = true
	return nil
}

func (e *fakeEnricher) DiscoverCompanies(ctx context.Context, city, industry string, progress func(int, int)) ([]*scraper.Result, error) {
	if e.discoverErr != nil {
		return nil, e.discoverErr
	}
	return e.discovered, nil
}

type fakeEnricherFactory struct {
	enricher *fakeEnricher
}

func (f *fakeEnricherFactory) ForJob(cfg scrapejob.Config) Enricher {
	if f.enricher == nil {
		return nil
	}
	return f.enricher
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (d *fakeDispatcher) Dispatch(name string, payload map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, name)
}

type fakeMetrics struct {
	started  []string
	finished []string
	recorded []*scrapejob.Job
}

func (m *fakeMetrics) JobStarted(source string)  { m.started = append(m.started, source) }
func (m *fakeMetrics) JobFinished(source string) { m.finished = append(m.finished, source) }
func (m *fakeMetrics) RecordJobMetrics(job *scrapejob.Job) {
	m.recorded = append(m.recorded, job)
}

type fakeAlerter struct {
	failures []*scrapejob.Job
}

func (a *fakeAlerter) NotifyJobFailure(ctx context.Context, job *scrapejob.Job) {
	a.failures = append(a.failures, job)
}

type workerFixture struct {
	worker     *Worker
	jobs       *fakeJobStore
	companies  *fakeCompanyStore
	dedup      *fakeDedup
	dispatcher *fakeDispatcher
	metrics    *fakeMetrics
	alerter    *fakeAlerter
}

func newFixture(job *scrapejob.Job, runner *fakeRunner, enricher *fakeEnricher) *workerFixture {
	f := &workerFixture{
		jobs:       newFakeJobStore(job),
		companies:  newFakeCompanyStore(),
		dedup:      &fakeDedup{},
		dispatcher: &fakeDispatcher{},
		metrics:    &fakeMetrics{},
		alerter:    &fakeAlerter{},
	}
	f.worker = New(
		f.jobs, f.companies, f.dedup,
		&fakeRunnerFactory{runner: runner},
		&fakeEnricherFactory{enricher: enricher},
		processor.NewValidator(), processor.NewNormalizer(),
		f.dispatcher, f.metrics, f.alerter, nil,
	)
	return f
}

func pendingJob(id int64, cfg scrapejob.Config) *scrapejob.Job {
	return &scrapejob.Job{
		ID:       id,
		Source:   cfg.SourceName,
		City:     cfg.City,
		Industry: cfg.Industry,
		Status:   scrapejob.StatusPending,
		Config:   cfg,
	}
}

func directoryResult(name string) *scraper.Result {
	r := scraper.NewResult(name)
	r.City = "Stuttgart"
	r.AddSource("11880", "https://www.11880.com/suche/a/b", []string{"company_name", "city"})
	return r
}

func TestRunMissingJobHasNoSideEffects(t *testing.T) {
	f := newFixture(pendingJob(1, scrapejob.Config{SourceName: "11880"}), &fakeRunner{}, nil)

	err := f.worker.Run(context.Background(), 999)
	require.NoError(t, err)

	assert.Empty(t, f.metrics.started)
	assert.Empty(t, f.companies.inserts)
	assert.Equal(t, scrapejob.StatusPending, f.jobs.stored(1).Status)
}

func TestRunUnknownSourceFailsHard(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{SourceName: "yellow_pages_usa", City: "Stuttgart"})
	f := newFixture(job, &fakeRunner{}, nil)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusFailed, stored.Status)
	assert.Equal(t, float64(100), stored.Progress)
	assert.Contains(t, stored.ErrorMessage, "yellow_pages_usa")
	assert.Empty(t, f.companies.inserts, "no rows written for unknown source")
	require.Len(t, f.alerter.failures, 1)
	assert.Len(t, f.metrics.finished, 1, "active gauge released")
}

func TestRunZeroResultsFails(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{SourceName: "11880", City: "Stuttgart", MaxPages: 1})
	f := newFixture(job, &fakeRunner{results: nil, pages: 1}, nil)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusFailed, stored.Status)
	assert.Equal(t, "Scraping returned no results", stored.ErrorMessage)
	assert.Equal(t, float64(100), stored.Progress)
	assert.NotContains(t, f.dispatcher.events, "job.completed", "failed jobs emit no completion event")
}

func TestRunProcessesValidAndCountsInvalid(t *testing.T) {
	results := []*scraper.Result{
		directoryResult("Bäckerei Müller"),
		directoryResult(""),
	}
	job := pendingJob(1, scrapejob.Config{SourceName: "11880", City: "Stuttgart", Industry: "Bäckerei", MaxPages: 2})
	f := newFixture(job, &fakeRunner{results: results, pages: 2}, nil)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusCompleted, stored.Status)
	assert.Equal(t, float64(100), stored.Progress)
	assert.Equal(t, 1, stored.ResultsCount)
	assert.Equal(t, 1, stored.NewCompanies)
	assert.Equal(t, 0, stored.UpdatedCompanies)
	assert.Equal(t, 1, stored.ErrorsCount)
	assert.Empty(t, stored.ErrorMessage)
	assert.NotNil(t, stored.CompletedAt)

	require.Len(t, f.companies.inserts, 1)
	assert.Contains(t, f.dispatcher.events, "job.completed")
	require.Len(t, f.metrics.recorded, 1)
}

func TestRunUpdatesExistingCompany(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{SourceName: "11880", City: "Stuttgart", MaxPages: 1})
	f := newFixture(job, &fakeRunner{results: []*scraper.Result{directoryResult("Bäckerei Müller")}, pages: 1}, nil)
	f.companies.byKey[companyKey("Bäckerei Müller", "Stuttgart")] = &company.Company{
		ID: 5, CompanyName: "Bäckerei Müller", City: "Stuttgart",
	}

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusCompleted, stored.Status)
	assert.Equal(t, 0, stored.NewCompanies)
	assert.Equal(t, 1, stored.UpdatedCompanies)
	assert.Empty(t, f.companies.inserts)
	require.Len(t, f.companies.updates, 1)
}

func TestRunAutoMergesHighSimilarityInsert(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{SourceName: "11880", City: "Stuttgart", MaxPages: 1})
	f := newFixture(job, &fakeRunner{results: []*scraper.Result{directoryResult("Bäckerei Müller")}, pages: 1}, nil)
	f.dedup.matches = []dedup.Match{{
		Company:           &company.Company{ID: 42},
		OverallSimilarity: 97,
	}}

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusCompleted, stored.Status)
	assert.Equal(t, 0, stored.NewCompanies, "merged insert does not count as new")
	assert.Equal(t, 1, stored.ResultsCount)
	assert.Equal(t, 1, statAsInt(stored.Stats["auto_merged_duplicates"]))

	require.Len(t, f.dedup.merges, 1)
	assert.Equal(t, int64(42), f.dedup.merges[0][0])
	assert.Contains(t, f.dispatcher.events, "duplicate.merged")
}

func TestRunCreatesCandidateForMediumSimilarity(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{SourceName: "11880", City: "Stuttgart", MaxPages: 1})
	f := newFixture(job, &fakeRunner{results: []*scraper.Result{directoryResult("Bäckerei Müller")}, pages: 1}, nil)
	f.dedup.matches = []dedup.Match{{
		Company:           &company.Company{ID: 42},
		OverallSimilarity: 85,
	}}

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, 1, stored.NewCompanies, "candidate insert still counts as new")
	assert.Equal(t, 1, statAsInt(stored.Stats["duplicate_candidates_created"]))
	assert.Empty(t, f.dedup.merges)
	require.Len(t, f.dedup.candidates, 1)
	assert.Contains(t, f.dispatcher.events, "duplicate.detected")
}

func TestRunCancellationStopsProcessing(t *testing.T) {
	results := make([]*scraper.Result, 0, 12)
	for i := 0; i < 12; i++ {
		results = append(results, directoryResult(fmt.Sprintf("Firma %02d", i)))
	}
	job := pendingJob(1, scrapejob.Config{
		SourceName:                "11880",
		City:                      "Stuttgart",
		MaxPages:                  1,
		CancellationCheckInterval: 5,
	})
	f := newFixture(job, &fakeRunner{results: results, pages: 1}, nil)
	f.jobs.cancelAfterPoll = 0

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusCancelled, stored.Status)
	assert.LessOrEqual(t, stored.Progress, float64(99), "cancelled jobs never read 100")
	assert.Less(t, len(f.companies.inserts), 12, "processing stopped mid-run")
	assert.Equal(t, 5, len(f.companies.inserts), "first batch processed before the poll")
}

func TestRunFallbackDiscoversWhenScrapeEmpty(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{
		SourceName:         "11880",
		City:               "Stuttgart",
		Industry:           "Bäckerei",
		MaxPages:           1,
		EnableSmartScraper: true,
		SmartScraperMode:   scrapejob.SmartModeFallback,
	})
	enricher := &fakeEnricher{discovered: []*scraper.Result{directoryResult("Entdeckte Firma")}}
	f := newFixture(job, &fakeRunner{results: nil, pages: 1}, enricher)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.ResultsCount)
	assert.False(t, enricher.enriched, "fallback mode does not enrich")
}

func TestRunFallbackSkippedWhenResultsExist(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{
		SourceName:         "11880",
		City:               "Stuttgart",
		MaxPages:           1,
		EnableSmartScraper: true,
		SmartScraperMode:   scrapejob.SmartModeFallback,
	})
	enricher := &fakeEnricher{discovered: []*scraper.Result{directoryResult("Entdeckte Firma")}}
	f := newFixture(job, &fakeRunner{results: []*scraper.Result{directoryResult("Bäckerei Müller")}, pages: 1}, enricher)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, f.jobs.stored(1).ResultsCount, "directory results used, discovery skipped")
}

func TestRunEnrichmentModeAlwaysEnriches(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{
		SourceName:         "11880",
		City:               "Stuttgart",
		MaxPages:           1,
		EnableSmartScraper: true,
		SmartScraperMode:   scrapejob.SmartModeEnrichment,
	})
	enricher := &fakeEnricher{}
	f := newFixture(job, &fakeRunner{results: []*scraper.Result{directoryResult("Bäckerei Müller")}, pages: 1}, enricher)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, enricher.enriched)
	assert.Equal(t, scrapejob.StatusCompleted, f.jobs.stored(1).Status)
}

func TestRunSmartFailureIsSoft(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{
		SourceName:         "11880",
		City:               "Stuttgart",
		MaxPages:           1,
		EnableSmartScraper: true,
		SmartScraperMode:   scrapejob.SmartModeFallback,
	})
	enricher := &fakeEnricher{discoverErr: errors.New("search engine blocked us")}
	f := newFixture(job, &fakeRunner{results: []*scraper.Result{}, pages: 1}, enricher)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusFailed, stored.Status, "no results after soft smart failure")
	assert.Equal(t, "Scraping returned no results", stored.ErrorMessage)
}

func TestRunPanicBecomesFailedJobWithAlert(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{SourceName: "11880", City: "Stuttgart", MaxPages: 1})
	f := newFixture(job, &fakeRunner{panics: true}, nil)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	stored := f.jobs.stored(1)
	assert.Equal(t, scrapejob.StatusFailed, stored.Status)
	assert.Equal(t, float64(100), stored.Progress)
	assert.Contains(t, stored.ErrorMessage, "browser crashed")
	require.Len(t, f.alerter.failures, 1)
	assert.Len(t, f.metrics.finished, 1)
}

func TestRunProgressIsMonotonic(t *testing.T) {
	results := []*scraper.Result{directoryResult("Bäckerei Müller"), directoryResult("Autohaus Schmidt")}
	job := pendingJob(1, scrapejob.Config{SourceName: "11880", City: "Stuttgart", MaxPages: 4})
	f := newFixture(job, &fakeRunner{results: results, pages: 4}, nil)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)

	last := 0.0
	for _, p := range f.jobs.progressWrites {
		assert.GreaterOrEqual(t, p, last)
		last = p
	}
	assert.Equal(t, float64(100), f.jobs.stored(1).Progress)
}

func TestRunSkipsTerminalJob(t *testing.T) {
	job := pendingJob(1, scrapejob.Config{SourceName: "11880"})
	job.Status = scrapejob.StatusCompleted
	f := newFixture(job, &fakeRunner{}, nil)

	err := f.worker.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, f.metrics.started)
}

func statAsInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return -1
}
