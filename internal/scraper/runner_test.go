package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSite struct {
	urls      []string
	parseErr  error
	perResult int
}

func (s *stubSite) GetSearchURLs(city, industry string, maxPages int) ([]string, error) {
	return s.urls, nil
}

func (s *stubSite) ParseSearchResults(html, sourceURL string) ([]*Result, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	out := make([]*Result, 0, s.perResult)
	for i := 0; i < s.perResult; i++ {
		out = append(out, NewResult(fmt.Sprintf("Company %d from %s", i, sourceURL)))
	}
	return out, nil
}

type stubLimiter struct {
	waits int32
}

func (l *stubLimiter) Connect(ctx context.Context) error { return nil }
func (l *stubLimiter) WaitIfNeeded(ctx context.Context, domain string) error {
	atomic.AddInt32(&l.waits, 1)
	return nil
}
func (l *stubLimiter) Close() error { return nil }

func testRunnerOptions() RunnerOptions {
	return RunnerOptions{
		Name:        "test",
		Domain:      "example.com",
		MaxRetries:  3,
		BackoffUnit: time.Millisecond,
	}
}

func TestScrapeCollectsResultsAndStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	site := &stubSite{urls: []string{srv.URL + "/1", srv.URL + "/2"}, perResult: 3}
	limiter := &stubLimiter{}
	r := NewRunner(testRunnerOptions(), site, limiter, nil, nil, nil)

	var pages []int
	results, err := r.Scrape(context.Background(), "Stuttgart", "Bäckerei", 2, func(current, total int) {
		pages = append(pages, current)
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)

	assert.Len(t, results, 6)
	assert.Equal(t, []int{1, 2}, pages)
	assert.Equal(t, int32(2), limiter.waits)

	st := r.GetStats()
	assert.Equal(t, 2, st.Requests)
	assert.Equal(t, 2, st.Successes)
	assert.Equal(t, 0, st.Errors)
	assert.Equal(t, 6, st.Results)
}

func TestScrapeRetriesThenSkipsFailingURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	site := &stubSite{urls: []string{srv.URL + "/bad", srv.URL + "/good"}, perResult: 1}
	r := NewRunner(testRunnerOptions(), site, nil, nil, nil, nil)

	results, err := r.Scrape(context.Background(), "Stuttgart", "Bäckerei", 2, nil)
	require.NoError(t, err)

	assert.Len(t, results, 1, "failing url is skipped, run continues")
	assert.Equal(t, int32(3), hits, "failing url retried max_retries times")

	st := r.GetStats()
	assert.Equal(t, 4, st.Requests)
	assert.Equal(t, 3, st.Errors)
	assert.Equal(t, 1, st.Successes)
}

func TestScrapeStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	site := &stubSite{urls: []string{srv.URL, srv.URL, srv.URL}, perResult: 1}
	r := NewRunner(testRunnerOptions(), site, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Scrape(ctx, "Stuttgart", "Bäckerei", 3, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, r.GetStats().Requests)
}

func TestLookupUnknownSource(t *testing.T) {
	_, err := Lookup("yellow_pages_usa")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestLookupKnownSources(t *testing.T) {
	for _, name := range []string{"11880", "gelbe_seiten", "das_oertliche", "goyellow"} {
		d, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name)
		assert.NotNil(t, d.New())
	}
}
