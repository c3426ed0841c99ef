package app

import (
	"context"
	"time"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"

	"leadharvest/internal/alert"
	"leadharvest/internal/browser"
	"leadharvest/internal/config"
	"leadharvest/internal/database"
	dbpostgres "leadharvest/internal/database/postgres"
	"leadharvest/internal/dedup"
	"leadharvest/internal/metrics"
	"leadharvest/internal/ollama"
	"leadharvest/internal/processor"
	"leadharvest/internal/proxy"
	"leadharvest/internal/ratelimit"
	"leadharvest/internal/repository"
	"leadharvest/internal/scheduler"
	"leadharvest/internal/scraper"
	"leadharvest/internal/search"
	"leadharvest/internal/service"
	"leadharvest/internal/webhook"
	"leadharvest/internal/worker"
	"leadharvest/internal/ws"
)

// Container wires every component of the scraping system.
type Container struct {
	Config config.Config
	Logger *log.Logger

	DB           database.DB
	Jobs         repository.ScrapingJobRepository
	Companies    repository.CompanyRepository
	Duplicates   repository.DuplicateRepository
	DedupEngine  *dedup.Engine
	DedupScanner *dedup.Scanner
	Limiter      scraper.RateLimiter
	Browser      *browser.Manager
	Proxies      *proxy.Manager
	Metrics      *metrics.Recorder
	PromRegistry *prometheus.Registry
	Dispatcher   *webhook.Dispatcher
	Worker       *worker.Worker
	JobService   *service.JobService
	Scheduler    *scheduler.Scheduler
	Hub          *ws.Hub
}

func NewContainer(cfg config.Config) (*Container, error) {
	logger := newLogger(cfg.App)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	jobs := repository.NewPostgresScrapingJobRepository(db)
	companies := repository.NewPostgresCompanyRepository(db)
	duplicates := repository.NewPostgresDuplicateRepository(db)

	var limiter scraper.RateLimiter
	if cfg.Redis.Addr != "" {
		limiter = ratelimit.NewRedisLimiter(
			cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Scraper.RateLimitRequests, cfg.Scraper.RateLimitWindow, cfg.Scraper.RateLimitMaxWait,
			logger,
		)
	} else {
		limiter = ratelimit.NewLocalLimiter(cfg.Scraper.RateLimitRequests, cfg.Scraper.RateLimitWindow)
	}

	var proxies *proxy.Manager
	if cfg.Proxy.Enabled {
		proxies, err = proxy.NewManager(cfg.Proxy.ProxyURL, cfg.Proxy.ControlAddr, cfg.Proxy.ControlPassword, logger)
		if err != nil {
			return nil, err
		}
	}

	browserOpts := browser.Options{Timeout: cfg.Scraper.RequestTimeout}
	if proxies != nil {
		browserOpts.ProxyURL = proxies.ProxyURL()
	}
	browserMgr := browser.NewManager(browserOpts, logger)

	engine := dedup.NewEngine(companies, duplicates, dedup.Thresholds{
		Candidate: cfg.Dedup.CandidateThreshold,
		AutoMerge: cfg.Dedup.AutoMergeThreshold,
	}, logger)
	scanner := dedup.NewScanner(engine, companies, 4, logger)

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)

	dispatcher := webhook.NewDispatcher(cfg.Webhooks.Endpoints, cfg.Webhooks.Timeout, logger)

	var notifier *alert.Notifier
	if cfg.Alerting.Enabled {
		notifier = alert.NewNotifier(cfg.Alerting.WebhookURL, cfg.App.Environment, cfg.Alerting.Timeout, logger)
	}

	var llm *ollama.Client
	if cfg.SmartScraper.UseAI {
		llm = ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model, cfg.Ollama.Timeout)
	}
	discovery := search.NewDiscovery(logger)

	runners := &runnerFactory{
		cfg:     cfg.Scraper,
		limiter: limiter,
		browser: browserMgr,
		logger:  logger,
	}
	if proxies != nil {
		runners.proxies = proxies
	}

	enrichers := &enricherFactory{
		cfg:     cfg.SmartScraper,
		llm:     llm,
		browser: browserMgr,
		finder:  discovery,
		logger:  logger,
	}

	var dedupForWorker worker.DuplicateEngine
	if cfg.Dedup.Enabled && cfg.Dedup.RealtimeEnabled {
		dedupForWorker = engine
	}

	jobWorker := worker.New(
		jobs, companies, dedupForWorker,
		runners, enrichers,
		processor.NewValidator(), processor.NewNormalizer(),
		dispatcher, recorder,
		&alerterAdapter{notifier: notifier},
		logger,
	)

	jobService := service.NewJobService(jobs, jobWorker, logger)

	var sched *scheduler.Scheduler
	if cfg.Dedup.Enabled {
		sched = scheduler.New(scanner, jobs, logger)
	} else {
		sched = scheduler.New(nil, jobs, logger)
	}

	hub := ws.NewHub(logger)
	ws.SetDefaultHub(hub)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Jobs:         jobs,
		Companies:    companies,
		Duplicates:   duplicates,
		DedupEngine:  engine,
		DedupScanner: scanner,
		Limiter:      limiter,
		Browser:      browserMgr,
		Proxies:      proxies,
		Metrics:      recorder,
		PromRegistry: promRegistry,
		Dispatcher:   dispatcher,
		Worker:       jobWorker,
		JobService:   jobService,
		Scheduler:    sched,
		Hub:          hub,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Dispatcher != nil {
		c.Dispatcher.Wait()
	}
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Limiter != nil {
		c.Limiter.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func newLogger(cfg config.AppConfig) *log.Logger {
	logger := &log.Logger{
		Level:      log.ParseLevel(cfg.LogLevel),
		TimeFormat: time.RFC3339,
	}
	if cfg.Environment == "development" {
		logger.Writer = &log.ConsoleWriter{ColorOutput: true}
	}
	return logger
}
