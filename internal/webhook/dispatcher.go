package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
)

// Event names emitted by the job pipeline.
const (
	EventJobCompleted      = "job.completed"
	EventDuplicateMerged   = "duplicate.merged"
	EventDuplicateDetected = "duplicate.detected"
)

// Event is the envelope POSTed to every registered endpoint.
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Dispatcher fans events out to registered endpoints. Delivery is
// fire-and-forget: failures are logged and never surface to the pipeline.
type Dispatcher struct {
	mu        sync.RWMutex
	endpoints []string
	httpCli   *http.Client
	logger    *log.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(endpoints []string, timeout time.Duration, logger *log.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		endpoints: append([]string(nil), endpoints...),
		httpCli:   &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

func (d *Dispatcher) Register(endpoint string) {
	if d == nil || endpoint == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.endpoints {
		if e == endpoint {
			return
		}
	}
	d.endpoints = append(d.endpoints, endpoint)
}

// Dispatch queues the event for async delivery to every endpoint and
// returns immediately.
func (d *Dispatcher) Dispatch(name string, payload map[string]any) {
	if d == nil {
		return
	}
	d.mu.RLock()
	targets := append([]string(nil), d.endpoints...)
	d.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn().Err(err).Str("event", name).Msg("webhook encode failed")
		}
		return
	}

	for _, endpoint := range targets {
		d.wg.Add(1)
		go func(endpoint string) {
			defer d.wg.Done()
			if err := d.deliver(endpoint, body); err != nil && d.logger != nil {
				d.logger.Warn().Err(err).Str("event", name).Str("endpoint", endpoint).Str("delivery_id", event.ID).Msg("webhook delivery failed")
			}
		}(endpoint)
	}
}

func (d *Dispatcher) deliver(endpoint string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.httpCli.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpCli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint replied %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until in-flight deliveries drain, for clean shutdown.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
