package image

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/api/v1/"
	cfg.AppURL = "https://app.example"
	cfg.AppTitle = "Test App"
	return NewGatewayClient(cfg, nil)
}

func TestGatewayClient_ChatVariant(t *testing.T) {
	var gotPath string
	var gotBody []byte
	var gotHeader http.Header

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	out := g.Call(context.Background(),
		Attempt{Model: "m1", Variant: VariantChat},
		EditInput{Prompt: "add a hat", Image: "data:image/png;base64,AAAA"})

	require.True(t, out.OK)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.JSONEq(t, `{"ok":true}`, string(out.Body))

	assert.Equal(t, "/api/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "https://app.example", gotHeader.Get("HTTP-Referer"))
	assert.Equal(t, "Test App", gotHeader.Get("X-Title"))

	doc := gjson.ParseBytes(gotBody)
	assert.Equal(t, "m1", doc.Get("model").String())
	assert.Equal(t, "user", doc.Get("messages.0.role").String())
	assert.Equal(t, "text", doc.Get("messages.0.content.0.type").String())
	assert.Equal(t, "add a hat", doc.Get("messages.0.content.0.text").String())
	assert.Equal(t, "image_url", doc.Get("messages.0.content.1.type").String())
	assert.Equal(t, "data:image/png;base64,AAAA", doc.Get("messages.0.content.1.image_url.url").String())
}

func TestGatewayClient_ResponsesVariant(t *testing.T) {
	var gotPath string
	var gotBody []byte

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{}`))
	})

	out := g.Call(context.Background(),
		Attempt{Model: "m2", Variant: VariantResponses},
		EditInput{Prompt: "p", Image: "https://x/y.png"})

	require.True(t, out.OK)
	assert.Equal(t, "/api/v1/responses", gotPath)

	doc := gjson.ParseBytes(gotBody)
	assert.Equal(t, "m2", doc.Get("model").String())
	assert.Equal(t, "input_text", doc.Get("input.0.content.0.type").String())
	assert.Equal(t, "p", doc.Get("input.0.content.0.text").String())
	assert.Equal(t, "input_image", doc.Get("input.0.content.1.type").String())
	assert.Equal(t, "https://x/y.png", doc.Get("input.0.content.1.image_url").String())
	assert.False(t, doc.Get("messages").Exists())
}

func TestGatewayClient_NonJSONBodyWrapped(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	out := g.Call(context.Background(), Attempt{Model: "m", Variant: VariantChat}, EditInput{Prompt: "p", Image: "i"})

	assert.False(t, out.OK)
	assert.Equal(t, http.StatusBadGateway, out.Status)
	assert.Equal(t, "<html>bad gateway</html>", out.Text)

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(out.Body, &wrapped))
	assert.Equal(t, "<html>bad gateway</html>", wrapped["raw"])
}

func TestWrapBody_KeepsHTMLReadable(t *testing.T) {
	body := wrapBody([]byte("<html><body>Bad Gateway & co</body></html>"))

	assert.Equal(t, `{"raw":"<html><body>Bad Gateway & co</body></html>"}`, string(body))
	assert.Equal(t, `{"raw":"<html><body>Bad Gateway & co</body></html>"}`, Preview(body, RawPreviewLimit))

	failed := failedOutcome(errors.New("dial <host> & retry"))
	assert.Equal(t, `{"error":"dial <host> & retry"}`, string(failed.Body))
}

func TestGatewayClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "k"
	cfg.BaseURL = url
	g := NewGatewayClient(cfg, nil)

	out := g.Call(context.Background(), Attempt{Model: "m", Variant: VariantChat}, EditInput{Prompt: "p", Image: "i"})

	assert.False(t, out.OK)
	assert.Equal(t, 0, out.Status)
	assert.True(t, gjson.GetBytes(out.Body, "error").Exists())
	assert.NotEmpty(t, out.Text)
}

func TestGatewayClient_UnknownVariant(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	out := g.Call(context.Background(), Attempt{Model: "m", Variant: "bogus"}, EditInput{Prompt: "p", Image: "i"})
	assert.False(t, out.OK)
	assert.Equal(t, 0, out.Status)
}
