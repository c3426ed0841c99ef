package smart

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/phuslu/log"

	"leadharvest/internal/scraper"
	"leadharvest/internal/search"
)

// WebsiteFinder discovers candidate company websites for a search query.
type WebsiteFinder interface {
	FindWebsites(ctx context.Context, companyName, city string, limit int) ([]search.Hit, error)
}

// Enricher drives the strategy chain over scraped results, filling fields
// the directory listing did not provide.
type Enricher struct {
	scraper  *Scraper
	finder   WebsiteFinder
	maxSites int
	fallback bool
	logger   *log.Logger
}

func NewEnricher(s *Scraper, finder WebsiteFinder, maxSites int, fallback bool, logger *log.Logger) *Enricher {
	if maxSites <= 0 {
		maxSites = 10
	}
	return &Enricher{
		scraper:  s,
		finder:   finder,
		maxSites: maxSites,
		fallback: fallback,
		logger:   logger,
	}
}

// EnrichResults visits each result's website (discovering one when missing)
// and merges extracted contact data into empty fields. At most maxSites
// sites are visited. progress fires after every processed result.
func (e *Enricher) EnrichResults(ctx context.Context, results []*scraper.Result, progress func(done, total int)) error {
	if e == nil || e.scraper == nil {
		return fmt.Errorf("enricher not configured")
	}

	visited := 0
	for i, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if visited >= e.maxSites {
			break
		}

		site := r.Website
		if site == "" && e.finder != nil {
			hits, err := e.finder.FindWebsites(ctx, r.CompanyName, r.City, 1)
			if err != nil {
				if e.logger != nil {
					e.logger.Debug().Err(err).Str("company", r.CompanyName).Msg("website discovery failed")
				}
			} else if len(hits) > 0 {
				site = hits[0].URL
			}
		}
		if site == "" {
			if progress != nil {
				progress(i+1, len(results))
			}
			continue
		}

		ext, method, err := e.scraper.Scrape(ctx, site, e.fallback)
		visited++
		if err != nil {
			if e.logger != nil {
				e.logger.Debug().Err(err).Str("company", r.CompanyName).Str("site", site).Msg("enrichment found nothing")
			}
			if progress != nil {
				progress(i+1, len(results))
			}
			continue
		}

		applyExtraction(r, ext, site, method)
		if progress != nil {
			progress(i+1, len(results))
		}
	}
	return nil
}

// DiscoverCompanies backfills an empty scrape: it searches the industry in
// the city and builds a stub result per discovered site. Each stub survives
// even when every strategy comes up empty; extraction only enriches it.
func (e *Enricher) DiscoverCompanies(ctx context.Context, city, industry string, progress func(done, total int)) ([]*scraper.Result, error) {
	if e == nil || e.scraper == nil {
		return nil, fmt.Errorf("enricher not configured")
	}
	if e.finder == nil {
		return nil, fmt.Errorf("no website finder configured")
	}

	hits, err := e.finder.FindWebsites(ctx, industry, city, e.maxSites)
	if err != nil {
		return nil, fmt.Errorf("discover sites: %w", err)
	}

	results := make([]*scraper.Result, 0, len(hits))
	for i, hit := range hits {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		name := strings.TrimSpace(hit.Title)
		if name == "" {
			name = hostOf(hit.URL)
		}
		if name == "" {
			name = hit.URL
		}
		r := scraper.NewResult(name)
		r.City = city
		r.Industry = industry
		r.Website = hit.URL
		results = append(results, r)

		ext, method, err := e.scraper.Scrape(ctx, hit.URL, e.fallback)
		if err != nil {
			if e.logger != nil {
				e.logger.Debug().Err(err).Str("site", hit.URL).Msg("discovery extraction found nothing")
			}
		} else {
			applyExtraction(r, ext, hit.URL, method)
		}

		if progress != nil {
			progress(i+1, len(hits))
		}
	}
	return results, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

func applyExtraction(r *scraper.Result, ext *Extraction, site, method string) {
	if r == nil || ext == nil {
		return
	}
	if r.Website == "" {
		r.Website = site
	}
	if r.Email == "" {
		r.Email = ext.Email
	}
	if r.Phone == "" {
		r.Phone = ext.Phone
	}
	if r.Address == "" {
		r.Address = ext.Address
	}
	if r.Description == "" {
		r.Description = ext.Description
	}
	r.ExtraData["smart_scraper_method"] = method

	fields := make([]string, 0, 4)
	for name, val := range map[string]string{
		"email":       ext.Email,
		"phone":       ext.Phone,
		"address":     ext.Address,
		"description": ext.Description,
	} {
		if val != "" {
			fields = append(fields, name)
		}
	}
	r.AddSource("smart_scraper", site, fields)
}
