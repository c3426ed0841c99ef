package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchDeliversToAllEndpoints(t *testing.T) {
	var mu sync.Mutex
	received := make([]Event, 0)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt Event
		require.NoError(t, json.Unmarshal(body, &evt))
		mu.Lock()
		received = append(received, evt)
		mu.Unlock()
	})
	srv1 := httptest.NewServer(handler)
	defer srv1.Close()
	srv2 := httptest.NewServer(handler)
	defer srv2.Close()

	d := NewDispatcher([]string{srv1.URL, srv2.URL}, time.Second, nil)
	d.Dispatch(EventJobCompleted, map[string]any{"job_id": float64(7)})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	for _, evt := range received {
		assert.Equal(t, EventJobCompleted, evt.Name)
		assert.NotEmpty(t, evt.ID)
		assert.Equal(t, float64(7), evt.Payload["job_id"])
	}
}

func TestDispatchSwallowsEndpointFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL, "http://127.0.0.1:1/unreachable"}, 200*time.Millisecond, nil)
	d.Dispatch(EventDuplicateMerged, map[string]any{"primary_id": float64(1)})
	d.Wait()
}

func TestRegisterDeduplicatesEndpoints(t *testing.T) {
	d := NewDispatcher(nil, time.Second, nil)
	d.Register("https://hooks.example/a")
	d.Register("https://hooks.example/a")
	assert.Len(t, d.endpoints, 1)
}

func TestDispatchWithoutEndpointsIsNoop(t *testing.T) {
	d := NewDispatcher(nil, time.Second, nil)
	d.Dispatch(EventDuplicateDetected, nil)
	d.Wait()
}
