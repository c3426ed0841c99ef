package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/phuslu/log"
)

// Context carries everything a failure alert interpolates.
type Context struct {
	AlertType                  string  `json:"alert_type"`
	Severity                   string  `json:"severity"`
	JobID                      int64   `json:"job_id"`
	Source                     string  `json:"source"`
	City                       string  `json:"city"`
	Industry                   string  `json:"industry"`
	ErrorMessage               string  `json:"error_message"`
	DurationSeconds            float64 `json:"duration_seconds"`
	Timestamp                  string  `json:"timestamp"`
	Environment                string  `json:"environment"`
	ResultsCount               int     `json:"results_count"`
	ErrorsCount                int     `json:"errors_count"`
	AutoMergedDuplicates       int     `json:"auto_merged_duplicates"`
	DuplicateCandidatesCreated int     `json:"duplicate_candidates_created"`
	DedupKey                   string  `json:"dedup_key"`
}

var failureTemplate = template.Must(template.New("scraping_failure").Parse(strings.TrimSpace(`
[{{.Severity}}] Scraping job {{.JobID}} failed ({{.Environment}})
Source: {{.Source}} | City: {{.City}} | Industry: {{.Industry}}
Error: {{.ErrorMessage}}
Duration: {{printf "%.1f" .DurationSeconds}}s | Results: {{.ResultsCount}} | Errors: {{.ErrorsCount}}
Duplicates: {{.AutoMergedDuplicates}} merged, {{.DuplicateCandidatesCreated}} candidates
At: {{.Timestamp}}
`)))

// Notifier renders failure alerts and POSTs them to the alerting webhook.
// The dedup key lets the receiving side collapse repeats of the same
// failing job.
type Notifier struct {
	webhookURL  string
	environment string
	httpCli     *http.Client
	logger      *log.Logger
}

func NewNotifier(webhookURL, environment string, timeout time.Duration, logger *log.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL:  webhookURL,
		environment: environment,
		httpCli:     &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// BuildFailureContext fills the template context for a failed job.
func (n *Notifier) BuildFailureContext(jobID int64, source, city, industry, errorMessage string, durationSeconds float64, resultsCount, errorsCount, autoMerged, candidates int) Context {
	env := "development"
	if n != nil && n.environment != "" {
		env = n.environment
	}
	return Context{
		AlertType:                  "scraping_failure",
		Severity:                   "error",
		JobID:                      jobID,
		Source:                     source,
		City:                       city,
		Industry:                   industry,
		ErrorMessage:               errorMessage,
		DurationSeconds:            durationSeconds,
		Timestamp:                  time.Now().UTC().Format(time.RFC3339),
		Environment:                env,
		ResultsCount:               resultsCount,
		ErrorsCount:                errorsCount,
		AutoMergedDuplicates:       autoMerged,
		DuplicateCandidatesCreated: candidates,
		DedupKey:                   fmt.Sprintf("scraping_failure:%s:%d", env, jobID),
	}
}

// NotifyFailure sends the alert. Errors are logged and swallowed; alerting
// must never take a worker down with it.
func (n *Notifier) NotifyFailure(ctx context.Context, alertCtx Context) {
	if n == nil || n.webhookURL == "" {
		return
	}

	var body bytes.Buffer
	if err := failureTemplate.Execute(&body, alertCtx); err != nil {
		if n.logger != nil {
			n.logger.Warn().Err(err).Int64("job_id", alertCtx.JobID).Msg("alert template failed")
		}
		return
	}

	payload, err := json.Marshal(map[string]any{
		"text":    body.String(),
		"context": alertCtx,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpCli.Do(req)
	if err != nil {
		if n.logger != nil {
			n.logger.Warn().Err(err).Str("dedup_key", alertCtx.DedupKey).Msg("alert delivery failed")
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && n.logger != nil {
		n.logger.Warn().Int("status", resp.StatusCode).Str("dedup_key", alertCtx.DedupKey).Msg("alert endpoint rejected notification")
	}
}
