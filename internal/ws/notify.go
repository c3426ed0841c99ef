package ws

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// JobEvent is the frame pushed to dashboard clients on job lifecycle
// changes.
type JobEvent struct {
	Type      string  `json:"type"`
	JobID     int64   `json:"job_id"`
	Source    string  `json:"source"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Timestamp string  `json:"timestamp"`
}

var defaultHub atomic.Pointer[Hub]

func SetDefaultHub(h *Hub) {
	defaultHub.Store(h)
}

// NotifyJobUpdate broadcasts a status or progress change. No-op when no hub
// is installed, so workers can run without the server.
func NotifyJobUpdate(jobID int64, source, status string, progress float64) {
	h := defaultHub.Load()
	if h == nil {
		return
	}

	evt := JobEvent{
		Type:      "job_update",
		JobID:     jobID,
		Source:    source,
		Status:    status,
		Progress:  progress,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.Broadcast(b)
}
