package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"leadharvest/internal/app"
	"leadharvest/internal/config"
	"leadharvest/internal/domain/scrapejob"
)

// Runs a single scraping job from the command line, without the HTTP
// server. Useful for cron-driven scrapes and local testing.
func main() {
	source := flag.String("source", "", "directory source (11880, gelbe_seiten, das_oertliche, goyellow)")
	city := flag.String("city", "", "target city")
	industry := flag.String("industry", "", "target industry")
	pages := flag.Int("pages", 1, "pages to scrape per search")
	anonymize := flag.Bool("anonymize", false, "route traffic through the proxy")
	smartMode := flag.String("smart", "disabled", "smart scraper mode: disabled, fallback, enrichment")
	useAI := flag.Bool("ai", false, "use LLM extraction strategies")
	flag.Parse()

	if strings.TrimSpace(*source) == "" {
		log.Fatalf("provide -source")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	c, err := app.NewContainer(cfg)
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer func() {
		_ = c.Close()
	}()

	jobCfg := scrapejob.Config{
		SourceName:         strings.TrimSpace(*source),
		City:               strings.TrimSpace(*city),
		Industry:           strings.TrimSpace(*industry),
		MaxPages:           *pages,
		UseAnonymizer:      *anonymize,
		EnableSmartScraper: *smartMode != scrapejob.SmartModeDisabled,
		SmartScraperMode:   *smartMode,
		UseAI:              *useAI,
	}

	ctx := context.Background()
	job, err := c.Jobs.Create(ctx, jobCfg)
	if err != nil {
		log.Fatalf("create job failed: %v", err)
	}

	if err := c.Worker.Run(ctx, job.ID); err != nil {
		log.Fatalf("job %d failed: %v", job.ID, err)
	}

	final, err := c.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		log.Fatalf("reload job failed: %v", err)
	}
	log.Printf("job %d finished status=%s results=%d new=%d updated=%d errors=%d",
		final.ID, final.Status, final.ResultsCount, final.NewCompanies, final.UpdatedCompanies, final.ErrorsCount)
}
