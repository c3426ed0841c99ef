package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// SiteScraper is the two-method contract every directory adapter implements.
type SiteScraper interface {
	GetSearchURLs(city, industry string, maxPages int) ([]string, error)
	ParseSearchResults(html, sourceURL string) ([]*Result, error)
}

// RateLimiter throttles fetches per domain, shared across concurrent jobs.
type RateLimiter interface {
	Connect(ctx context.Context) error
	WaitIfNeeded(ctx context.Context, domain string) error
	Close() error
}

// ProxyManager hands out the anonymizing proxy and rotates its identity.
type ProxyManager interface {
	ProxyURL() *url.URL
	RotateIdentity(ctx context.Context) error
}

// Browser renders JavaScript-heavy pages and returns the resulting HTML.
type Browser interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

type Stats struct {
	Requests  int
	Successes int
	Errors    int
	Results   int
}

type RunnerOptions struct {
	Name          string
	Domain        string
	UseAnonymizer bool
	UseBrowser    bool

	MaxRetries     int
	RequestTimeout time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration

	// BackoffUnit scales the 2^attempt retry wait; tests shrink it.
	BackoffUnit time.Duration
}

// Runner drives one SiteScraper through a full retrying, throttled,
// identity-rotated run. Runners own their counters and must not be shared
// across concurrent jobs.
type Runner struct {
	name          string
	domain        string
	useAnonymizer bool
	useBrowser    bool

	site    SiteScraper
	limiter RateLimiter
	proxies ProxyManager
	browser Browser
	client  *http.Client

	maxRetries  int
	delayMin    time.Duration
	delayMax    time.Duration
	backoffUnit time.Duration

	logger *log.Logger

	mu    sync.Mutex
	stats Stats
}

func NewRunner(opts RunnerOptions, site SiteScraper, limiter RateLimiter, proxies ProxyManager, browser Browser, logger *log.Logger) *Runner {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = time.Second
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}

	transport := &http.Transport{}
	if opts.UseAnonymizer && proxies != nil {
		transport.Proxy = func(_ *http.Request) (*url.URL, error) {
			return proxies.ProxyURL(), nil
		}
	}

	return &Runner{
		name:          opts.Name,
		domain:        opts.Domain,
		useAnonymizer: opts.UseAnonymizer,
		useBrowser:    opts.UseBrowser,
		site:          site,
		limiter:       limiter,
		proxies:       proxies,
		browser:       browser,
		client: &http.Client{
			Timeout:   opts.RequestTimeout,
			Transport: transport,
		},
		maxRetries:  opts.MaxRetries,
		delayMin:    opts.DelayMin,
		delayMax:    opts.DelayMax,
		backoffUnit: opts.BackoffUnit,
		logger:      logger,
	}
}

// Scrape walks every search URL in order: rate-limit wait, fetch with
// bounded retries, parse, politeness delay, identity rotation every 10th
// request. Exhausted retries on one URL skip it; the run continues.
func (r *Runner) Scrape(ctx context.Context, city, industry string, maxPages int, progress func(currentPage, totalPages int)) ([]*Result, error) {
	if r == nil || r.site == nil {
		return nil, fmt.Errorf("nil runner")
	}

	if r.limiter != nil {
		if err := r.limiter.Connect(ctx); err != nil {
			r.logger.Warn().Str("scraper", r.name).Err(err).Msg("rate limiter unavailable, continuing unthrottled")
		}
	}

	urls, err := r.site.GetSearchURLs(city, industry, maxPages)
	if err != nil {
		return nil, fmt.Errorf("search urls: %w", err)
	}
	r.logger.Info().Str("scraper", r.name).Str("city", city).Str("industry", industry).Int("urls", len(urls)).Msg("scrape started")

	all := make([]*Result, 0)
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		if r.limiter != nil {
			if err := r.limiter.WaitIfNeeded(ctx, r.domain); err != nil {
				return all, err
			}
		}

		results := r.scrapeWithRetry(ctx, u)
		if len(results) > 0 {
			all = append(all, results...)
			r.mu.Lock()
			r.stats.Results += len(results)
			r.mu.Unlock()
		}

		if progress != nil {
			progress(i+1, len(urls))
		}

		if err := r.politenessDelay(ctx); err != nil {
			return all, err
		}

		if (i+1)%10 == 0 && r.useAnonymizer && r.proxies != nil {
			r.logger.Info().Str("scraper", r.name).Msg("rotating proxy identity")
			if err := r.proxies.RotateIdentity(ctx); err != nil {
				r.logger.Warn().Str("scraper", r.name).Err(err).Msg("identity rotation failed")
			}
		}
	}

	st := r.GetStats()
	r.logger.Info().Str("scraper", r.name).Int("results", len(all)).Int("requests", st.Requests).Int("errors", st.Errors).Msg("scrape finished")
	return all, nil
}

func (r *Runner) scrapeWithRetry(ctx context.Context, pageURL string) []*Result {
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		r.mu.Lock()
		r.stats.Requests++
		r.mu.Unlock()

		results, err := r.fetchAndParse(ctx, pageURL)
		if err == nil {
			r.mu.Lock()
			r.stats.Successes++
			r.mu.Unlock()
			return results
		}

		r.mu.Lock()
		r.stats.Errors++
		r.mu.Unlock()
		r.logger.Error().Str("scraper", r.name).Str("url", pageURL).Int("attempt", attempt).Int("max_retries", r.maxRetries).Err(err).Msg("fetch failed")

		if attempt < r.maxRetries {
			wait := r.backoffUnit * time.Duration(1<<attempt)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil
			}
		}
	}

	r.logger.Error().Str("scraper", r.name).Str("url", pageURL).Msg("retries exhausted, skipping url")
	return nil
}

func (r *Runner) fetchAndParse(ctx context.Context, pageURL string) ([]*Result, error) {
	var html string
	var err error
	if r.useBrowser && r.browser != nil {
		html, err = r.browser.FetchHTML(ctx, pageURL)
	} else {
		html, err = r.fetchHTTP(ctx, pageURL)
	}
	if err != nil {
		return nil, err
	}
	return r.site.ParseSearchResults(html, pageURL)
}

func (r *Runner) fetchHTTP(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("http status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (r *Runner) politenessDelay(ctx context.Context) error {
	if r.delayMax <= 0 {
		return nil
	}
	min := r.delayMin
	if min < 0 {
		min = 0
	}
	span := r.delayMax - min
	delay := min
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	return sleepCtx(ctx, delay)
}

func (r *Runner) GetStats() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}
