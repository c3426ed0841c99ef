package app

import (
	"context"
	"time"

	"github.com/phuslu/log"

	"leadharvest/internal/alert"
	"leadharvest/internal/config"
	"leadharvest/internal/domain/scrapejob"
	"leadharvest/internal/ollama"
	"leadharvest/internal/scraper"
	"leadharvest/internal/smart"
	"leadharvest/internal/worker"
)

// runnerFactory builds a configured site runner per job.
type runnerFactory struct {
	cfg     config.ScraperConfig
	limiter scraper.RateLimiter
	proxies scraper.ProxyManager
	browser scraper.Browser
	logger  *log.Logger
}

func (f *runnerFactory) ForSource(jobCfg scrapejob.Config) (worker.SiteRunner, error) {
	desc, err := scraper.Lookup(jobCfg.SourceName)
	if err != nil {
		return nil, err
	}

	opts := scraper.RunnerOptions{
		Name:           desc.Name,
		Domain:         desc.Domain,
		UseBrowser:     desc.UseBrowser,
		UseAnonymizer:  jobCfg.UseAnonymizer,
		MaxRetries:     f.cfg.MaxRetries,
		RequestTimeout: f.cfg.RequestTimeout,
		DelayMin:       f.cfg.DelayMin,
		DelayMax:       f.cfg.DelayMax,
		BackoffUnit:    time.Second,
	}

	var proxies scraper.ProxyManager
	if jobCfg.UseAnonymizer {
		proxies = f.proxies
	}
	return scraper.NewRunner(opts, desc.New(), f.limiter, proxies, f.browser, f.logger), nil
}

// enricherFactory assembles the smart-scraper chain per job. AI strategies
// join the chain only when the job asks for them and an LLM is wired.
type enricherFactory struct {
	cfg     config.SmartScraperConfig
	llm     *ollama.Client
	browser smart.PageFetcher
	finder  smart.WebsiteFinder
	logger  *log.Logger
}

func (f *enricherFactory) ForJob(jobCfg scrapejob.Config) worker.Enricher {
	if !f.cfg.Enabled {
		return nil
	}

	strategies := make([]smart.Strategy, 0, 4)
	if jobCfg.UseAI && f.llm != nil {
		strategies = append(strategies,
			smart.NewCrawlerLLM(f.llm, f.cfg.Timeout),
			smart.NewTextLLM(f.llm, f.cfg.Timeout),
		)
	}
	if f.browser != nil {
		strategies = append(strategies, smart.NewBrowserDOM(f.browser))
	}
	strategies = append(strategies, smart.NewHTTPDOM(f.cfg.Timeout))

	sc := smart.NewScraper(f.cfg.PreferredMethod, strategies, f.logger)

	maxSites := jobCfg.SmartScraperMaxSites
	if maxSites <= 0 {
		maxSites = f.cfg.MaxSites
	}
	return smart.NewEnricher(sc, f.finder, maxSites, true, f.logger)
}

// alerterAdapter bridges the worker's failure hook to the alert notifier.
type alerterAdapter struct {
	notifier *alert.Notifier
}

func (a *alerterAdapter) NotifyJobFailure(ctx context.Context, job *scrapejob.Job) {
	if a == nil || a.notifier == nil || job == nil {
		return
	}
	alertCtx := a.notifier.BuildFailureContext(
		job.ID, job.Source, job.City, job.Industry,
		job.ErrorMessage, job.DurationSeconds,
		job.ResultsCount, job.ErrorsCount,
		statInt(job.Stats, "auto_merged_duplicates"),
		statInt(job.Stats, "duplicate_candidates_created"),
	)
	a.notifier.NotifyFailure(ctx, alertCtx)
}

// statInt reads a stats counter that may come back as float64 after a
// JSONB round trip.
func statInt(stats map[string]any, key string) int {
	switch v := stats[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
