package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"
)

// Hit is one discovered website candidate.
type Hit struct {
	Title string
	URL   string
}

// excludedDomains filters directory and social sites out of discovery
// results so enrichment only visits actual company sites.
var excludedDomains = []string{
	"11880.com",
	"gelbeseiten.de",
	"dasoertliche.de",
	"goyellow.de",
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"xing.com",
	"youtube.com",
	"wikipedia.org",
	"yelp.",
	"tripadvisor.",
}

// Discovery finds company websites through the DuckDuckGo Lite HTML
// endpoint, which needs no API key and parses with a few selectors.
type Discovery struct {
	baseURL string
	httpCli *http.Client
	logger  *log.Logger
}

func NewDiscovery(logger *log.Logger) *Discovery {
	return &Discovery{
		baseURL: "https://lite.duckduckgo.com/lite/",
		httpCli: &http.Client{Timeout: 20 * time.Second},
		logger:  logger,
	}
}

// FindWebsites searches for companyName in city and returns up to limit
// candidate sites, excluded domains filtered out.
func (d *Discovery) FindWebsites(ctx context.Context, companyName, city string, limit int) ([]Hit, error) {
	if d == nil {
		return nil, fmt.Errorf("discovery is nil")
	}
	if limit <= 0 {
		limit = 3
	}

	query := strings.TrimSpace(companyName + " " + city)
	reqURL := d.baseURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")

	resp, err := d.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	hits := make([]Hit, 0, limit)
	doc.Find("a.result-link, td a[rel=nofollow]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		href = resolveRedirect(href)
		if href == "" || isExcluded(href) {
			return true
		}
		hits = append(hits, Hit{
			Title: strings.TrimSpace(a.Text()),
			URL:   href,
		})
		return len(hits) < limit
	})

	if d.logger != nil {
		d.logger.Debug().Str("query", query).Int("hits", len(hits)).Msg("website discovery")
	}
	return hits, nil
}

// resolveRedirect unwraps the uddg= indirection DuckDuckGo puts on result
// links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func isExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range excludedDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}
