package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type GoYellow struct {
	baseURL string
}

func NewGoYellow() *GoYellow {
	return &GoYellow{baseURL: "https://www.goyellow.de"}
}

func (s *GoYellow) GetSearchURLs(city, industry string, maxPages int) ([]string, error) {
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

func (s *GoYellow) ParseSearchResults(html, sourceURL string) ([]*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0)
	doc.Find(`div[class*="resultlist"] article, article[class*="result"]`).Each(func(_ int, entry *goquery.Selection) {
		name := cleanText(entry.Find("h2, h3").First().Text())
		if name == "" {
			return
		}

		r := NewResult(name)
		r.Address = cleanText(entry.Find(`address, [class*="address"]`).First().Text())
		r.City, r.PostalCode = splitCityLine(r.Address)

		if href, ok := entry.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			r.Phone = strings.TrimPrefix(href, "tel:")
		}
		if href, ok := entry.Find(`a[class*="website"]`).First().Attr("href"); ok {
			r.Website = href
		}

		r.AddSource("goyellow", sourceURL, presentFields(r))
		results = append(results, r)
	})

	return results, nil
}
