package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type DasOertliche struct {
	baseURL string
}

func NewDasOertliche() *DasOertliche {
	return &DasOertliche{baseURL: "https://www.dasoertliche.de"}
}

func (s *DasOertliche) GetSearchURLs(city, industry string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	encodedIndustry := url.QueryEscape(industry)
	encodedCity := url.QueryEscape(city)

	urls := make([]string, 0, maxPages)
	for page := 1; page <= maxPages; page++ {
		u := fmt.Sprintf("%s/Themen/%s/%s.html", s.baseURL, encodedIndustry, encodedCity)
		if page > 1 {
			u += fmt.Sprintf("?page=%d", page)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *DasOertliche) ParseSearchResults(html, sourceURL string) ([]*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	entries := doc.Find(`article[class*="hit"]`)
	if entries.Length() == 0 {
		entries = doc.Find(`div[class*="entry"]`)
	}

	results := make([]*Result, 0)
	entries.Each(func(_ int, entry *goquery.Selection) {
		name := cleanText(entry.Find("h2").First().Text())
		if name == "" {
			name = cleanText(entry.Find(`a[class*="name"]`).First().Text())
		}
		if name == "" {
			return
		}

		r := NewResult(name)

		street := cleanText(entry.Find(`span[class*="street"]`).First().Text())
		cityLine := cleanText(entry.Find(`span[class*="city"], span[class*="ort"]`).First().Text())
		r.City, r.PostalCode = splitCityLine(cityLine)
		if street != "" && cityLine != "" {
			r.Address = street + ", " + cityLine
		} else {
			r.Address = street + cityLine
		}

		if href, ok := entry.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			r.Phone = strings.TrimPrefix(href, "tel:")
		}
		if href, ok := entry.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			r.Email = strings.TrimPrefix(href, "mailto:")
		}
		if href, ok := entry.Find(`a[class*="website"], a[class*="homepage"]`).First().Attr("href"); ok {
			r.Website = href
		}

		r.AddSource("das_oertliche", sourceURL, presentFields(r))
		results = append(results, r)
	})

	return results, nil
}
