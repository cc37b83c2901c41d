package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/internal/tlsutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/imageflow/llm/image"

// 上游响应体读取上限，base64 图片可能较大
const maxResponseBytes = 32 << 20

// =============================================================================
// 🌐 Wire formats
// =============================================================================

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type responsesRequest struct {
	Model string           `json:"model"`
	Input []responsesInput `json:"input"`
}

type responsesInput struct {
	Role    string          `json:"role"`
	Content []responsesPart `json:"content"`
}

type responsesPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// buildPayload 按 variant 编码请求体并返回端点路径。
func buildPayload(a Attempt, in EditInput) (string, any, error) {
	switch a.Variant {
	case VariantChat:
		return "/chat/completions", chatRequest{
			Model: a.Model,
			Messages: []chatMessage{{
				Role: "user",
				Content: []chatPart{
					{Type: "text", Text: in.Prompt},
					{Type: "image_url", ImageURL: &chatImageURL{URL: in.Image}},
				},
			}},
		}, nil
	case VariantResponses:
		return "/responses", responsesRequest{
			Model: a.Model,
			Input: []responsesInput{{
				Role: "user",
				Content: []responsesPart{
					{Type: "input_text", Text: in.Prompt},
					{Type: "input_image", ImageURL: in.Image},
				},
			}},
		}, nil
	default:
		return "", nil, fmt.Errorf("unknown variant %q", a.Variant)
	}
}

// =============================================================================
// 🔌 GatewayClient
// =============================================================================

// GatewayClient 通过 HTTP 调用 OpenRouter 兼容的推理网关。
type GatewayClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	tracer trace.Tracer
}

// NewGatewayClient 创建网关客户端。
func NewGatewayClient(cfg Config, logger *zap.Logger) *GatewayClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &GatewayClient{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout, tlsutil.WithMaxIdleConnsPerHost(16)),
		logger: logger.With(zap.String("component", "image_gateway")),
		tracer: otel.Tracer(instrumentationName),
	}
}

// Call 执行一次尝试。所有失败都编码进返回值。
func (g *GatewayClient) Call(ctx context.Context, a Attempt, in EditInput) AttemptOutcome {
	ctx, span := g.tracer.Start(ctx, "image.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("image.model", a.Model),
			attribute.String("image.variant", string(a.Variant)),
		))
	defer span.End()

	start := time.Now()
	out := g.do(ctx, a, in)
	out.Duration = time.Since(start)

	span.SetAttributes(attribute.Int("http.response.status_code", out.Status))
	if !out.OK {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", out.Status))
	}
	return out
}

func (g *GatewayClient) do(ctx context.Context, a Attempt, in EditInput) AttemptOutcome {
	path, payload, err := buildPayload(a, in)
	if err != nil {
		return failedOutcome(err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return failedOutcome(fmt.Errorf("encode request: %w", err))
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return failedOutcome(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", g.cfg.AppURL)
	req.Header.Set("X-Title", g.cfg.AppTitle)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("gateway request failed",
			zap.String("model", a.Model),
			zap.String("variant", string(a.Variant)),
			zap.Error(err))
		return failedOutcome(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failedOutcome(fmt.Errorf("read response: %w", err))
	}

	return AttemptOutcome{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Body:   wrapBody(raw),
		Text:   string(raw),
	}
}

// wrapBody 保证返回合法 JSON，非 JSON 文本包装为 {"raw": text}。
func wrapBody(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return encodeField("raw", string(raw))
}

func failedOutcome(err error) AttemptOutcome {
	return AttemptOutcome{OK: false, Status: 0, Body: encodeField("error", err.Error()), Text: err.Error()}
}

// encodeField 编码单字段对象，<、>、& 不转义。
func encodeField(key, value string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(map[string]string{key: value})
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n"))
}
