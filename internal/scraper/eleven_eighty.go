package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ElevenEighty scrapes the 11880.com business directory. Static HTML, no
// JavaScript rendering needed.
type ElevenEighty struct {
	baseURL string
}

func NewElevenEighty() *ElevenEighty {
	return &ElevenEighty{baseURL: "https://www.11880.com"}
}

func (s *ElevenEighty) GetSearchURLs(city, industry string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	encodedIndustry := url.QueryEscape(industry)
	encodedCity := url.QueryEscape(city)

	urls := make([]string, 0, maxPages)
	for page := 1; page <= maxPages; page++ {
		u := fmt.Sprintf("%s/suche/%s/%s", s.baseURL, encodedIndustry, encodedCity)
		if page > 1 {
			u += fmt.Sprintf("?page=%d", page)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *ElevenEighty) ParseSearchResults(html, sourceURL string) ([]*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0)
	doc.Find(`article[class*="mod-Treffer"]`).Each(func(_ int, entry *goquery.Selection) {
		name := cleanText(entry.Find("h2").First().Text())
		if name == "" {
			return
		}

		r := NewResult(name)
		r.Address = cleanText(entry.Find(`[class*="address"]`).First().Text())
		r.City, r.PostalCode = splitCityLine(r.Address)

		if href, ok := entry.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			r.Phone = strings.TrimPrefix(href, "tel:")
		}
		if href, ok := entry.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			r.Email = strings.TrimPrefix(href, "mailto:")
		}
		if href, ok := entry.Find(`a[class*="website"]`).First().Attr("href"); ok {
			r.Website = href
		}
		r.Description = cleanText(entry.Find(`[class*="description"]`).First().Text())

		r.AddSource("11880", sourceURL, presentFields(r))
		results = append(results, r)
	})

	return results, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitCityLine pulls "12345 Stuttgart" style postal/city pairs out of the
// tail of an address line.
func splitCityLine(address string) (city, postal string) {
	fields := strings.Fields(address)
	for i := 0; i < len(fields)-1; i++ {
		if len(fields[i]) == 5 && isDigits(fields[i]) {
			return strings.Join(fields[i+1:], " "), fields[i]
		}
	}
	return "", ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func presentFields(r *Result) []string {
	fields := make([]string, 0, 8)
	for name, val := range map[string]string{
		"company_name": r.CompanyName,
		"website":      r.Website,
		"phone":        r.Phone,
		"email":        r.Email,
		"address":      r.Address,
		"city":         r.City,
		"postal_code":  r.PostalCode,
		"description":  r.Description,
	} {
		if val != "" {
			fields = append(fields, name)
		}
	}
	return fields
}
