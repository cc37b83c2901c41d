package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// =============================================================================
// 🧪 Test doubles
// =============================================================================

// scriptedGateway 按调用顺序返回预设结果，超出脚本后重复最后一个。
type scriptedGateway struct {
	mu       sync.Mutex
	outcomes []AttemptOutcome
	calls    []Attempt
}

func (g *scriptedGateway) Call(_ context.Context, a Attempt, _ EditInput) AttemptOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, a)
	i := len(g.calls) - 1
	if i >= len(g.outcomes) {
		i = len(g.outcomes) - 1
	}
	return g.outcomes[i]
}

func okOutcome(body string) AttemptOutcome {
	return AttemptOutcome{OK: true, Status: http.StatusOK, Body: json.RawMessage(body), Text: body}
}

func failOutcome(status int, body string) AttemptOutcome {
	return AttemptOutcome{OK: false, Status: status, Body: json.RawMessage(body), Text: body}
}

type recordingRecorder struct {
	attempts int
	outcomes []string
}

func (r *recordingRecorder) RecordImageAttempt(string, string, int, int, time.Duration) { r.attempts++ }
func (r *recordingRecorder) RecordImageOutcome(outcome string)                           { r.outcomes = append(r.outcomes, outcome) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.APIKey = "sk-test"
	return cfg
}

// =============================================================================
// 🎯 Editor
// =============================================================================

func TestEditor_MissingInputMakesNoCalls(t *testing.T) {
	tests := []EditRequest{
		{Prompt: "", Image: "data:image/png;base64,AAAA"},
		{Prompt: "add a hat", Image: ""},
		{Prompt: "   ", Image: "https://x/y.png"},
		{},
	}

	for _, req := range tests {
		gw := &scriptedGateway{outcomes: []AttemptOutcome{okOutcome(`{}`)}}
		e := NewEditor(testConfig(), WithGateway(gw))

		res, err := e.Edit(context.Background(), req)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrMissingInput)
		assert.Empty(t, gw.calls)
	}
}

func TestEditor_NotConfigured(t *testing.T) {
	gw := &scriptedGateway{outcomes: []AttemptOutcome{okOutcome(`{}`)}}
	rec := &recordingRecorder{}
	e := NewEditor(DefaultConfig(), WithGateway(gw), WithRecorder(rec))

	_, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, gw.calls)
	assert.Equal(t, []string{OutcomeNotConfigured}, rec.outcomes)
}

func TestEditor_FirstAttemptSucceeds(t *testing.T) {
	body := `{"choices":[{"message":{"content":[{"image_url":{"url":"https://cdn/x.png"}}]}}]}`
	gw := &scriptedGateway{outcomes: []AttemptOutcome{okOutcome(body)}}
	rec := &recordingRecorder{}
	e := NewEditor(testConfig(), WithGateway(gw), WithRecorder(rec), WithLogger(zap.NewNop()))

	res, err := e.Edit(context.Background(), EditRequest{Prompt: "add a hat", Image: "data:image/png;base64,AAAA"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://cdn/x.png"}, res.Images)
	assert.Empty(t, res.Texts)
	assert.JSONEq(t, body, string(res.Raw))
	assert.Equal(t, DefaultModel, res.Model)
	assert.Equal(t, VariantChat, res.Variant)
	assert.Len(t, gw.calls, 1)
	assert.Equal(t, 1, rec.attempts)
	assert.Equal(t, []string{OutcomeSuccess}, rec.outcomes)
}

func TestEditor_ContinuesPastSoftFailures(t *testing.T) {
	gw := &scriptedGateway{outcomes: []AttemptOutcome{
		failOutcome(http.StatusBadRequest, `{"error":"bad shape"}`),
		failOutcome(http.StatusNotFound, `{"error":"no route"}`),
		okOutcome(`{"choices":[{"message":{"content":"Sorry, text only"}}]}`),
		okOutcome(`{"data":[{"b64_json":"QUJD"}],"note":"done"}`),
	}}
	e := NewEditor(testConfig(), WithGateway(gw))

	res, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png", Model: "m1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"data:image/png;base64,QUJD"}, res.Images)
	assert.Len(t, gw.calls, 4)
	assert.Equal(t, Attempt{Model: "m1", Variant: VariantChat}, gw.calls[0])
	assert.Equal(t, Attempt{Model: "m1", Variant: VariantResponses}, gw.calls[1])
	assert.Equal(t, Attempt{Model: "stability-ai/stable-image-ultra", Variant: VariantChat}, gw.calls[2])
}

func TestEditor_EarlyAbortOnAuthStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		gw := &scriptedGateway{outcomes: []AttemptOutcome{
			failOutcome(http.StatusInternalServerError, `{"error":"boom"}`),
			failOutcome(status, `{"error":"key revoked"}`),
			okOutcome(`{"url":"https://cdn/never.png"}`),
		}}
		rec := &recordingRecorder{}
		e := NewEditor(testConfig(), WithGateway(gw), WithRecorder(rec))

		res, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png"})
		assert.Nil(t, res)

		var authErr *UpstreamAuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, status, authErr.Status)
		assert.Equal(t, `{"error":"key revoked"}`, authErr.Detail)
		assert.Equal(t, fmt.Sprintf("upstream_error_%d", status), authErr.Tag())
		assert.Len(t, gw.calls, 2)
		assert.Equal(t, []string{OutcomeUpstreamAuth}, rec.outcomes)
	}
}

func TestEditor_ExhaustedClassifiesLastFailure(t *testing.T) {
	gw := &scriptedGateway{outcomes: []AttemptOutcome{
		failOutcome(http.StatusPaymentRequired, `{"error":"pay up"}`),
		okOutcome(`{"choices":[{"message":{"content":"no images"}}]}`),
		okOutcome(`{"error":{"message":"Rate limit reached for this model"}}`),
	}}
	e := NewEditor(testConfig(), WithGateway(gw))

	res, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png"})
	assert.Nil(t, res)

	var exErr *ExhaustedError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonRateLimited, exErr.Reason.Code)
	assert.Equal(t, http.StatusOK, exErr.LastStatus)
	assert.Equal(t, e.Plan(""), exErr.Tried)
	assert.Len(t, gw.calls, 4)
	assert.Equal(t, `{"error":{"message":"Rate limit reached for this model"}}`, exErr.RawPreview)
}

func TestEditor_ExhaustedPreviewTruncated(t *testing.T) {
	big := `{"raw":"` + strings.Repeat("a", 2000) + `"}`
	gw := &scriptedGateway{outcomes: []AttemptOutcome{failOutcome(http.StatusBadGateway, big)}}
	e := NewEditor(testConfig(), WithGateway(gw))

	_, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png"})

	var exErr *ExhaustedError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonNoImage, exErr.Reason.Code)
	assert.Equal(t, RawPreviewLimit+1, len([]rune(exErr.RawPreview)))
	assert.True(t, strings.HasSuffix(exErr.RawPreview, "…"))
}

func TestEditor_CancelledContextStopsSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &cancellingGateway{cancel: cancel}
	e := NewEditor(testConfig(), WithGateway(gw))

	_, err := e.Edit(ctx, EditRequest{Prompt: "p", Image: "https://x/y.png"})

	var exErr *ExhaustedError
	require.ErrorAs(t, err, &exErr)
	assert.Len(t, exErr.Tried, 1)
	assert.Equal(t, 1, gw.calls)
}

type cancellingGateway struct {
	cancel context.CancelFunc
	calls  int
}

func (g *cancellingGateway) Call(_ context.Context, _ Attempt, _ EditInput) AttemptOutcome {
	g.calls++
	g.cancel()
	return failOutcome(0, `{"error":"context canceled"}`)
}

// Property: whatever the script, no attempt is issued after a 401/403.
func TestProperty_Editor_EarlyAbort(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		statuses := rapid.SliceOfN(
			rapid.SampledFrom([]int{200, 400, 401, 403, 404, 429, 500}), 1, 6,
		).Draw(rt, "statuses")

		outcomes := make([]AttemptOutcome, len(statuses))
		for i, s := range statuses {
			if s == 200 {
				outcomes[i] = okOutcome(`{"text":"nothing"}`)
			} else {
				outcomes[i] = failOutcome(s, `{}`)
			}
		}
		gw := &scriptedGateway{outcomes: outcomes}
		e := NewEditor(testConfig(), WithGateway(gw))

		_, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png"})

		for i := range gw.calls {
			status := outcomes[min(i, len(outcomes)-1)].Status
			if status == 401 || status == 403 {
				assert.Len(rt, gw.calls, i+1, "attempt issued after auth failure")
				var authErr *UpstreamAuthError
				assert.True(rt, errors.As(err, &authErr))
				return
			}
		}
		var exErr *ExhaustedError
		assert.True(rt, errors.As(err, &exErr))
		assert.Len(rt, gw.calls, len(e.Plan("")))
	})
}

// =============================================================================
// 🌐 End to end against a fake upstream
// =============================================================================

func newUpstream(t *testing.T, handler func(n int64, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(calls.Add(1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEditor_EndToEnd_Forbidden(t *testing.T) {
	srv, calls := newUpstream(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"forbidden"}}`))
	})

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	e := NewEditor(cfg)

	_, err := e.Edit(context.Background(), EditRequest{Prompt: "add a hat", Image: "data:image/png;base64,AAAA"})

	var authErr *UpstreamAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.Status)
	assert.Equal(t, int64(1), calls.Load())
}

func TestEditor_EndToEnd_RateLimited(t *testing.T) {
	srv, calls := newUpstream(t, func(_ int64, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"You hit a rate limit, try later"}}]}`))
	})

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	e := NewEditor(cfg)

	_, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png"})

	var exErr *ExhaustedError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonRateLimited, exErr.Reason.Code)
	assert.Equal(t, int64(len(e.Plan(""))), calls.Load())
}

func TestEditor_EndToEnd_SecondVariantSucceeds(t *testing.T) {
	srv, _ := newUpstream(t, func(_ int64, w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("unsupported payload"))
			return
		}
		_, _ = w.Write([]byte(`{"output":[{"type":"image","image":"https://cdn/r.png"}],"status":"completed"}`))
	})

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	e := NewEditor(cfg)

	res, err := e.Edit(context.Background(), EditRequest{Prompt: "p", Image: "https://x/y.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/r.png"}, res.Images)
	assert.Equal(t, VariantResponses, res.Variant)
	assert.Equal(t, []string{"image", "completed"}, res.Texts)
}
