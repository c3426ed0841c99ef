package smart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name   string
	ext    *Extraction
	err    error
	called int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(ctx context.Context, pageURL string) (*Extraction, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	return s.ext, nil
}

func TestChainOrderAIBeforeHeuristic(t *testing.T) {
	browser := &stubStrategy{name: MethodBrowserDOM, ext: &Extraction{Email: "dom@example.com"}}
	crawler := &stubStrategy{name: MethodCrawlerLLM, ext: &Extraction{}}
	text := &stubStrategy{name: MethodTextLLM, ext: &Extraction{Email: "llm@example.com"}}

	s := NewScraper("", []Strategy{browser, crawler, text}, nil)

	ext, method, err := s.Scrape(context.Background(), "https://example.com", true)
	require.NoError(t, err)

	assert.Equal(t, MethodTextLLM, method, "text_llm runs before browser_dom")
	assert.Equal(t, "llm@example.com", ext.Email)
	assert.Equal(t, 1, crawler.called)
	assert.Equal(t, 1, text.called)
	assert.Equal(t, 0, browser.called)
}

func TestPreferredMethodRunsFirst(t *testing.T) {
	crawler := &stubStrategy{name: MethodCrawlerLLM, ext: &Extraction{Email: "ai@example.com"}}
	httpDOM := &stubStrategy{name: MethodHTTPDOM, ext: &Extraction{Email: "dom@example.com"}}

	s := NewScraper(MethodHTTPDOM, []Strategy{crawler, httpDOM}, nil)

	_, method, err := s.Scrape(context.Background(), "https://example.com", true)
	require.NoError(t, err)
	assert.Equal(t, MethodHTTPDOM, method)
	assert.Equal(t, 0, crawler.called)
}

func TestNoFallbackRunsOnlyFirstStrategy(t *testing.T) {
	first := &stubStrategy{name: MethodCrawlerLLM, err: errors.New("llm down")}
	second := &stubStrategy{name: MethodHTTPDOM, ext: &Extraction{Email: "dom@example.com"}}

	s := NewScraper(MethodCrawlerLLM, []Strategy{first, second}, nil)

	_, _, err := s.Scrape(context.Background(), "https://example.com", false)
	assert.Error(t, err)
	assert.Equal(t, 0, second.called)
}

func TestStrategyErrorsCountAsNoResult(t *testing.T) {
	first := &stubStrategy{name: MethodCrawlerLLM, err: errors.New("timeout")}
	second := &stubStrategy{name: MethodTextLLM, ext: &Extraction{Phone: "+49 711 123"}}

	s := NewScraper("", []Strategy{first, second}, nil)

	ext, method, err := s.Scrape(context.Background(), "https://example.com", true)
	require.NoError(t, err)
	assert.Equal(t, MethodTextLLM, method)
	assert.Equal(t, "+49 711 123", ext.Phone)
}

func TestStatsCountAttemptsAndSuccesses(t *testing.T) {
	first := &stubStrategy{name: MethodCrawlerLLM, ext: &Extraction{}}
	second := &stubStrategy{name: MethodTextLLM, ext: &Extraction{Email: "a@b.c"}}

	s := NewScraper("", []Strategy{first, second}, nil)

	_, _, err := s.Scrape(context.Background(), "https://example.com", true)
	require.NoError(t, err)

	stats := s.GetStats()
	assert.Equal(t, 1, stats.Attempts[MethodCrawlerLLM])
	assert.Equal(t, 0, stats.Successes[MethodCrawlerLLM])
	assert.Equal(t, 1, stats.Attempts[MethodTextLLM])
	assert.Equal(t, 1, stats.Successes[MethodTextLLM])
}

func TestAllStrategiesEmptyIsError(t *testing.T) {
	s := NewScraper("", []Strategy{
		&stubStrategy{name: MethodBrowserDOM, ext: &Extraction{}},
		&stubStrategy{name: MethodHTTPDOM, ext: &Extraction{}},
	}, nil)

	_, _, err := s.Scrape(context.Background(), "https://example.com", true)
	assert.Error(t, err)
}
