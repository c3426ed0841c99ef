package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRedirectUnwrapsDuckDuckGoLinks(t *testing.T) {
	got := resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fmueller.example%2F&rut=abc")
	assert.Equal(t, "https://mueller.example/", got)

	assert.Equal(t, "https://direct.example", resolveRedirect("https://direct.example"))
	assert.Empty(t, resolveRedirect("javascript:alert(1)"))
}

func TestIsExcludedFiltersDirectoriesAndSocials(t *testing.T) {
	assert.True(t, isExcluded("https://www.gelbeseiten.de/firma"))
	assert.True(t, isExcluded("https://de.linkedin.com/company/x"))
	assert.False(t, isExcluded("https://mueller.example"))
}

func TestFindWebsitesParsesAndFilters(t *testing.T) {
	page := `<html><body><table>
		<tr><td><a rel="nofollow" href="https://www.gelbeseiten.de/x">Verzeichnis</a></td></tr>
		<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fmueller.example%2F">Bäckerei Müller</a></td></tr>
		<tr><td><a rel="nofollow" href="https://schmidt.example">Autohaus Schmidt</a></td></tr>
	</table></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	d := NewDiscovery(nil)
	d.baseURL = srv.URL + "/lite/"

	hits, err := d.FindWebsites(context.Background(), "Bäckerei Müller", "Stuttgart", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2, "directory link filtered out")

	assert.Equal(t, "https://mueller.example/", hits[0].URL)
	assert.Equal(t, "Bäckerei Müller", hits[0].Title)
	assert.Equal(t, "https://schmidt.example", hits[1].URL)
}

func TestFindWebsitesRespectsLimit(t *testing.T) {
	page := `<html><body><table>
		<tr><td><a rel="nofollow" href="https://a.example">A</a></td></tr>
		<tr><td><a rel="nofollow" href="https://b.example">B</a></td></tr>
		<tr><td><a rel="nofollow" href="https://c.example">C</a></td></tr>
	</table></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	d := NewDiscovery(nil)
	d.baseURL = srv.URL + "/lite/"

	hits, err := d.FindWebsites(context.Background(), "Handwerk", "Stuttgart", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
