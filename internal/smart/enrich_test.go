package smart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadharvest/internal/search"
)

type stubFinder struct {
	hits []search.Hit
	err  error
}

func (f *stubFinder) FindWebsites(ctx context.Context, companyName, city string, limit int) ([]search.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func TestDiscoverCompaniesKeepsStubsWhenExtractionFails(t *testing.T) {
	finder := &stubFinder{hits: []search.Hit{
		{Title: "Bäckerei Müller", URL: "https://mueller.example"},
		{Title: "Autohaus Schmidt", URL: "https://schmidt.example"},
	}}
	sc := NewScraper("", []Strategy{
		&stubStrategy{name: MethodHTTPDOM, err: errors.New("site unreachable")},
	}, nil)
	e := NewEnricher(sc, finder, 10, true, nil)

	results, err := e.DiscoverCompanies(context.Background(), "Stuttgart", "Bäckerei", nil)
	require.NoError(t, err)
	require.Len(t, results, 2, "stubs survive failed extraction")

	assert.Equal(t, "Bäckerei Müller", results[0].CompanyName)
	assert.Equal(t, "https://mueller.example", results[0].Website)
	assert.Equal(t, "Stuttgart", results[0].City)
	assert.Equal(t, "Bäckerei", results[0].Industry)
	assert.Empty(t, results[0].Email)
	assert.Equal(t, "Autohaus Schmidt", results[1].CompanyName)
}

func TestDiscoverCompaniesNamesStubFromHostWhenTitleBlank(t *testing.T) {
	finder := &stubFinder{hits: []search.Hit{
		{Title: "", URL: "https://www.mueller-backwaren.example/kontakt"},
		{Title: "  ", URL: "not a url"},
	}}
	sc := NewScraper("", []Strategy{
		&stubStrategy{name: MethodHTTPDOM, err: errors.New("down")},
	}, nil)
	e := NewEnricher(sc, finder, 10, true, nil)

	results, err := e.DiscoverCompanies(context.Background(), "Stuttgart", "Bäckerei", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "mueller-backwaren.example", results[0].CompanyName)
	assert.Equal(t, "not a url", results[1].CompanyName, "raw URL is the last resort")
}

func TestDiscoverCompaniesEnrichesStubOnSuccess(t *testing.T) {
	finder := &stubFinder{hits: []search.Hit{
		{Title: "Bäckerei Müller", URL: "https://mueller.example"},
	}}
	sc := NewScraper("", []Strategy{
		&stubStrategy{name: MethodHTTPDOM, ext: &Extraction{Email: "info@mueller.example", Phone: "+49 711 123"}},
	}, nil)
	e := NewEnricher(sc, finder, 10, true, nil)

	results, err := e.DiscoverCompanies(context.Background(), "Stuttgart", "Bäckerei", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "info@mueller.example", results[0].Email)
	assert.Equal(t, "+49 711 123", results[0].Phone)
	assert.Equal(t, MethodHTTPDOM, results[0].ExtraData["smart_scraper_method"])
}

func TestDiscoverCompaniesReportsProgressForEveryHit(t *testing.T) {
	finder := &stubFinder{hits: []search.Hit{
		{Title: "", URL: "https://a.example"},
		{Title: "B", URL: "https://b.example"},
		{Title: "", URL: "https://c.example"},
	}}
	sc := NewScraper("", []Strategy{
		&stubStrategy{name: MethodHTTPDOM, err: errors.New("down")},
	}, nil)
	e := NewEnricher(sc, finder, 10, true, nil)

	var calls [][2]int
	_, err := e.DiscoverCompanies(context.Background(), "Stuttgart", "Bäckerei", func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)
}
