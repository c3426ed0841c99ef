package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GelbeSeiten scrapes gelbeseiten.de. The result list is rendered
// client-side, so the runner drives it through the headless browser.
type GelbeSeiten struct {
	baseURL string
}

func NewGelbeSeiten() *GelbeSeiten {
	return &GelbeSeiten{baseURL: "https://www.gelbeseiten.de"}
}

func (s *GelbeSeiten) GetSearchURLs(city, industry string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	encodedIndustry := url.QueryEscape(industry)
	encodedCity := url.QueryEscape(city)

	urls := make([]string, 0, maxPages)
	for page := 1; page <= maxPages; page++ {
		u := fmt.Sprintf("%s/Suche/%s/%s", s.baseURL, encodedIndustry, encodedCity)
		if page > 1 {
			u += fmt.Sprintf("?seite=%d", page)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *GelbeSeiten) ParseSearchResults(html, sourceURL string) ([]*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0)
	doc.Find(`article[class*="mod-Treffer"], div[class*="mod-Treffer"]`).Each(func(_ int, entry *goquery.Selection) {
		name := cleanText(entry.Find("h2").First().Text())
		if name == "" {
			return
		}

		r := NewResult(name)

		street := cleanText(entry.Find(`[data-wipe-name="Adresse"], [class*="address"]`).First().Text())
		r.City, r.PostalCode = splitCityLine(street)
		r.Address = street

		if href, ok := entry.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			r.Phone = strings.TrimPrefix(href, "tel:")
		}
		if href, ok := entry.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			r.Email = strings.TrimPrefix(href, "mailto:")
		}
		if href, ok := entry.Find(`a[class*="website"], a[data-wipe-name="Webseite"]`).First().Attr("href"); ok {
			r.Website = href
		}

		if href, ok := entry.Find(`a[href*="/branchenbuch/"]`).First().Attr("href"); ok {
			if strings.HasPrefix(href, "/") {
				href = s.baseURL + href
			}
			r.ExtraData["detail_url"] = href
		}

		r.AddSource("gelbe_seiten", sourceURL, presentFields(r))
		results = append(results, r)
	})

	return results, nil
}
