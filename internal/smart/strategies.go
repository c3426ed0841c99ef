package smart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// LLM is the completion backend the AI strategies prompt against.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PageFetcher renders a page and returns its DOM. The headless browser
// manager satisfies this.
type PageFetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

const extractionPrompt = `Extract the company contact details from the following website content.
Respond with a JSON object using exactly these keys: email, phone, website, address, description.
Use an empty string for anything not present. Content:

%s`

const maxPromptChars = 8000

type llmExtraction struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func promptAndParse(ctx context.Context, llm LLM, content string) (*Extraction, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return &Extraction{}, nil
	}
	if len(content) > maxPromptChars {
		content = content[:maxPromptChars]
	}

	raw, err := llm.Generate(ctx, fmt.Sprintf(extractionPrompt, content))
	if err != nil {
		return nil, fmt.Errorf("llm generate: %w", err)
	}

	var parsed llmExtraction
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse llm output: %w", err)
	}
	return &Extraction{
		Email:       strings.TrimSpace(parsed.Email),
		Phone:       strings.TrimSpace(parsed.Phone),
		Website:     strings.TrimSpace(parsed.Website),
		Address:     strings.TrimSpace(parsed.Address),
		Description: strings.TrimSpace(parsed.Description),
	}, nil
}

// CrawlerLLM crawls the target page plus same-host contact/imprint pages,
// converts them to markdown and asks the LLM for contact data.
type CrawlerLLM struct {
	llm     LLM
	timeout time.Duration
}

func NewCrawlerLLM(llm LLM, timeout time.Duration) *CrawlerLLM {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CrawlerLLM{llm: llm, timeout: timeout}
}

func (s *CrawlerLLM) Name() string { return MethodCrawlerLLM }

var contactLinkRe = regexp.MustCompile(`(?i)(kontakt|impressum|contact|imprint|about)`)

func (s *CrawlerLLM) Extract(ctx context.Context, pageURL string) (*Extraction, error) {
	converter := md.NewConverter("", true, nil)

	c := colly.NewCollector(
		colly.MaxDepth(2),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	var pages []string
	visited := 0

	c.OnHTML("html", func(e *colly.HTMLElement) {
		html, err := e.DOM.Html()
		if err != nil {
			return
		}
		markdown, err := converter.ConvertString(html)
		if err != nil {
			return
		}
		pages = append(pages, markdown)
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if visited >= 3 || !contactLinkRe.MatchString(e.Text+e.Attr("href")) {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		visited++
		_ = e.Request.Visit(link)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("crawl %s: %w", pageURL, err)
	}
	c.Wait()

	if len(pages) == 0 {
		return &Extraction{}, nil
	}
	return promptAndParse(ctx, s.llm, strings.Join(pages, "\n\n"))
}

// TextLLM fetches the single page over plain HTTP, strips it to visible
// text and asks the LLM for contact data.
type TextLLM struct {
	llm     LLM
	httpCli *http.Client
}

func NewTextLLM(llm LLM, timeout time.Duration) *TextLLM {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TextLLM{llm: llm, httpCli: &http.Client{Timeout: timeout}}
}

func (s *TextLLM) Name() string { return MethodTextLLM }

func (s *TextLLM) Extract(ctx context.Context, pageURL string) (*Extraction, error) {
	doc, err := fetchDocument(ctx, s.httpCli, pageURL)
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, svg").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return promptAndParse(ctx, s.llm, text)
}

// BrowserDOM renders the page headless and extracts contact data with DOM
// heuristics, no LLM involved.
type BrowserDOM struct {
	fetcher PageFetcher
}

func NewBrowserDOM(fetcher PageFetcher) *BrowserDOM {
	return &BrowserDOM{fetcher: fetcher}
}

func (s *BrowserDOM) Name() string { return MethodBrowserDOM }

func (s *BrowserDOM) Extract(ctx context.Context, pageURL string) (*Extraction, error) {
	html, err := s.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse dom: %w", err)
	}
	return extractFromDOM(doc, pageURL), nil
}

// HTTPDOM is the cheapest strategy: plain HTTP fetch plus the same DOM
// heuristics.
type HTTPDOM struct {
	httpCli *http.Client
}

func NewHTTPDOM(timeout time.Duration) *HTTPDOM {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDOM{httpCli: &http.Client{Timeout: timeout}}
}

func (s *HTTPDOM) Name() string { return MethodHTTPDOM }

func (s *HTTPDOM) Extract(ctx context.Context, pageURL string) (*Extraction, error) {
	doc, err := fetchDocument(ctx, s.httpCli, pageURL)
	if err != nil {
		return nil, err
	}
	return extractFromDOM(doc, pageURL), nil
}

func fetchDocument(ctx context.Context, cli *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(string(body)))
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(\+49|0)[0-9\s\-/()]{6,20}`)
)

func extractFromDOM(doc *goquery.Document, pageURL string) *Extraction {
	ext := &Extraction{Website: pageURL}

	if href, ok := doc.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
		ext.Email = strings.TrimPrefix(strings.SplitN(href, "?", 2)[0], "mailto:")
	}
	if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
		ext.Phone = strings.TrimPrefix(href, "tel:")
	}

	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()

	if ext.Email == "" {
		ext.Email = emailRe.FindString(text)
	}
	if ext.Phone == "" {
		ext.Phone = strings.TrimSpace(phoneRe.FindString(text))
	}
	ext.Address = strings.Join(strings.Fields(doc.Find("address").First().Text()), " ")
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		ext.Description = strings.TrimSpace(desc)
	}

	// A bare website URL with nothing else is not a finding.
	if ext.Email == "" && ext.Phone == "" && ext.Address == "" && ext.Description == "" {
		return &Extraction{}
	}
	return ext
}
