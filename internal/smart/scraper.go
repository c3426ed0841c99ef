package smart

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"
)

// Method names for the extraction strategies, ordered AI-first.
const (
	MethodCrawlerLLM = "crawler_llm"
	MethodTextLLM    = "text_llm"
	MethodBrowserDOM = "browser_dom"
	MethodHTTPDOM    = "http_dom"
)

// Extraction is the contact data a strategy pulled from a company website.
type Extraction struct {
	Email       string
	Phone       string
	Website     string
	Address     string
	Description string
}

// Empty reports whether the strategy found nothing usable.
func (e *Extraction) Empty() bool {
	if e == nil {
		return true
	}
	return e.Email == "" && e.Phone == "" && e.Website == "" && e.Address == "" && e.Description == ""
}

// Strategy is one way of extracting contact data from a page.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, pageURL string) (*Extraction, error)
}

// Stats counts attempts and successes per strategy.
type Stats struct {
	Attempts  map[string]int
	Successes map[string]int
}

// Scraper tries strategies in order until one returns a non-empty
// extraction. Strategy errors are logged and treated as "no result".
type Scraper struct {
	strategies []Strategy
	preferred  string
	mu         sync.Mutex
	attempts   map[string]int
	successes  map[string]int
	logger     *log.Logger
}

// NewScraper builds the chain in the fixed AI-before-heuristic order, with
// the preferred method moved to the front when it names a known strategy.
func NewScraper(preferred string, strategies []Strategy, logger *log.Logger) *Scraper {
	ordered := orderStrategies(preferred, strategies)
	return &Scraper{
		strategies: ordered,
		preferred:  preferred,
		attempts:   make(map[string]int),
		successes:  make(map[string]int),
		logger:     logger,
	}
}

func orderStrategies(preferred string, strategies []Strategy) []Strategy {
	rank := map[string]int{
		MethodCrawlerLLM: 0,
		MethodTextLLM:    1,
		MethodBrowserDOM: 2,
		MethodHTTPDOM:    3,
	}

	ordered := make([]Strategy, 0, len(strategies))
	var first Strategy
	rest := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Name() == preferred && first == nil {
			first = s
			continue
		}
		rest = append(rest, s)
	}
	for i := 0; i < len(rest); i++ {
		for j := i + 1; j < len(rest); j++ {
			if rank[rest[j].Name()] < rank[rest[i].Name()] {
				rest[i], rest[j] = rest[j], rest[i]
			}
		}
	}
	if first != nil {
		ordered = append(ordered, first)
	}
	return append(ordered, rest...)
}

// Scrape runs the chain against pageURL. With fallback disabled only the
// first strategy runs.
func (s *Scraper) Scrape(ctx context.Context, pageURL string, fallback bool) (*Extraction, string, error) {
	if s == nil || len(s.strategies) == 0 {
		return nil, "", fmt.Errorf("no extraction strategies configured")
	}

	chain := s.strategies
	if !fallback {
		chain = chain[:1]
	}

	for _, strat := range chain {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		s.mu.Lock()
		s.attempts[strat.Name()]++
		s.mu.Unlock()

		ext, err := strat.Extract(ctx, pageURL)
		if err != nil {
			if s.logger != nil {
				s.logger.Debug().Err(err).Str("method", strat.Name()).Str("url", pageURL).Msg("extraction strategy failed")
			}
			continue
		}
		if ext.Empty() {
			continue
		}

		s.mu.Lock()
		s.successes[strat.Name()]++
		s.mu.Unlock()
		return ext, strat.Name(), nil
	}

	return nil, "", fmt.Errorf("all extraction strategies returned no result for %s", pageURL)
}

func (s *Scraper) GetStats() Stats {
	out := Stats{
		Attempts:  make(map[string]int),
		Successes: make(map[string]int),
	}
	if s == nil {
		return out
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.attempts {
		out.Attempts[k] = v
	}
	for k, v := range s.successes {
		out.Successes[k] = v
	}
	return out
}
