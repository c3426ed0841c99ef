package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/phuslu/log"
)

// Manager owns a shared headless Chrome allocator and hands out short-lived
// tabs for page fetches. Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	proxyURL    *url.URL
	userAgent   string
	timeout     time.Duration
	logger      *log.Logger
}

type Options struct {
	ProxyURL  *url.URL
	UserAgent string
	Timeout   time.Duration
}

func NewManager(opts Options, logger *log.Logger) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	}
	return &Manager{
		proxyURL:  opts.ProxyURL,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		logger:    logger,
	}
}

func (m *Manager) ensureAllocator() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocCtx != nil {
		return m.allocCtx
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(m.userAgent),
	)
	if m.proxyURL != nil {
		opts = append(opts, chromedp.ProxyServer(m.proxyURL.String()))
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return m.allocCtx
}

// FetchHTML navigates to pageURL in a fresh tab, waits for the body to
// render and returns the serialized DOM.
func (m *Manager) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("browser manager is nil")
	}

	tabCtx, cancelTab := chromedp.NewContext(m.ensureAllocator())
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, m.timeout)
	defer cancelRun()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancelRun()
		case <-done:
		}
	}()
	defer close(done)

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn().Err(err).Str("url", pageURL).Msg("headless fetch failed")
		}
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return html, nil
}

func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCtx = nil
		m.allocCancel = nil
	}
}
