package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFailureContext(t *testing.T) {
	n := NewNotifier("https://hooks.example", "production", time.Second, nil)

	ctx := n.BuildFailureContext(42, "11880", "Stuttgart", "Bäckerei", "timeout", 12.5, 3, 1, 2, 4)

	assert.Equal(t, "scraping_failure", ctx.AlertType)
	assert.Equal(t, "error", ctx.Severity)
	assert.Equal(t, "scraping_failure:production:42", ctx.DedupKey)
	assert.Equal(t, "production", ctx.Environment)
	assert.Equal(t, 2, ctx.AutoMergedDuplicates)
	assert.Equal(t, 4, ctx.DuplicateCandidatesCreated)
	assert.NotEmpty(t, ctx.Timestamp)
}

func TestNotifyFailurePostsRenderedAlert(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "staging", time.Second, nil)
	alertCtx := n.BuildFailureContext(7, "gelbe_seiten", "Berlin", "Friseur", "browser crashed", 3.2, 0, 0, 0, 0)
	n.NotifyFailure(context.Background(), alertCtx)

	require.NotNil(t, payload)
	text, _ := payload["text"].(string)
	assert.Contains(t, text, "Scraping job 7 failed")
	assert.Contains(t, text, "browser crashed")
	assert.Contains(t, text, "staging")
}

func TestNotifyFailureSwallowsErrors(t *testing.T) {
	n := NewNotifier("http://127.0.0.1:1/unreachable", "dev", 100*time.Millisecond, nil)
	n.NotifyFailure(context.Background(), n.BuildFailureContext(1, "11880", "", "", "x", 0, 0, 0, 0, 0))

	disabled := NewNotifier("", "dev", time.Second, nil)
	disabled.NotifyFailure(context.Background(), Context{})
}
