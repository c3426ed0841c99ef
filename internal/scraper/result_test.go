package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSourceMergesSameOrigin(t *testing.T) {
	r := NewResult("Bäckerei Müller")

	r.AddSource("11880", "https://www.11880.com/suche/a/b", []string{"phone", "company_name"})
	r.AddSource("11880", "https://www.11880.com/suche/a/b", []string{"email", "phone"})

	require.Len(t, r.Sources, 1)
	assert.Equal(t, []string{"company_name", "email", "phone"}, r.Sources[0].Fields)
}

func TestAddSourceKeepsDistinctOrigins(t *testing.T) {
	r := NewResult("Bäckerei Müller")

	r.AddSource("11880", "https://www.11880.com/suche/a/b", []string{"phone"})
	r.AddSource("smart_scraper", "https://mueller.example", []string{"email"})

	assert.Len(t, r.Sources, 2)
}

func TestFieldsOmitsEmptyScalars(t *testing.T) {
	r := NewResult("Bäckerei Müller")
	r.City = "Stuttgart"
	r.ExtraData["detail_url"] = "https://example.com/detail"

	fields := r.Fields()

	assert.Equal(t, "Bäckerei Müller", fields["company_name"])
	assert.Equal(t, "Stuttgart", fields["city"])
	assert.Equal(t, "https://example.com/detail", fields["detail_url"])
	_, hasPhone := fields["phone"]
	assert.False(t, hasPhone)
}

func TestFieldsIncludesSources(t *testing.T) {
	r := NewResult("Bäckerei Müller")
	r.AddSource("11880", "https://www.11880.com", nil)

	fields := r.Fields()
	sources, ok := fields["sources"].([]Source)
	require.True(t, ok)
	assert.Len(t, sources, 1)
}
