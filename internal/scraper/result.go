package scraper

import (
	"sort"
	"time"
)

// Result is the transient record a site scraper produces. It lives only for
// the duration of one job; the worker flattens it to a field map before
// anything touches storage.
type Result struct {
	CompanyName string
	Website     string
	Phone       string
	Email       string
	Address     string
	City        string
	PostalCode  string
	Description string
	Industry    string

	ScrapedAt time.Time
	Sources   []Source
	ExtraData map[string]any
}

type Source struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Fields    []string  `json:"fields,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

func NewResult(companyName string) *Result {
	return &Result{
		CompanyName: companyName,
		ScrapedAt:   time.Now().UTC(),
		ExtraData:   map[string]any{},
	}
}

// AddSource records where a field set came from. Re-adding the same
// (name, url) pair merges the field list instead of duplicating the entry.
func (r *Result) AddSource(name, url string, fields []string) {
	if r == nil {
		return
	}
	for i := range r.Sources {
		if r.Sources[i].Name == name && r.Sources[i].URL == url {
			merged := map[string]struct{}{}
			for _, f := range r.Sources[i].Fields {
				merged[f] = struct{}{}
			}
			for _, f := range fields {
				merged[f] = struct{}{}
			}
			out := make([]string, 0, len(merged))
			for f := range merged {
				out = append(out, f)
			}
			sort.Strings(out)
			r.Sources[i].Fields = out
			return
		}
	}

	src := Source{Name: name, URL: url, ScrapedAt: time.Now().UTC()}
	if len(fields) > 0 {
		src.Fields = append(src.Fields, fields...)
		sort.Strings(src.Fields)
	}
	r.Sources = append(r.Sources, src)
}

// Fields flattens the result to the raw field map the worker validates,
// normalizes and filters. Empty scalars are omitted.
func (r *Result) Fields() map[string]any {
	if r == nil {
		return nil
	}
	out := map[string]any{}
	put := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}
	put("company_name", r.CompanyName)
	put("website", r.Website)
	put("phone", r.Phone)
	put("email", r.Email)
	put("address", r.Address)
	put("city", r.City)
	put("postal_code", r.PostalCode)
	put("description", r.Description)
	put("industry", r.Industry)

	for k, v := range r.ExtraData {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	if len(r.Sources) > 0 {
		out["sources"] = r.Sources
	}
	return out
}
