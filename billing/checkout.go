package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/imageflow/internal/tlsutil"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/imageflow/billing"

const maxResponseBytes = 1 << 20

// 固定的检索顺序：端点优先，载荷其次
var (
	checkoutEndpoints = []string{"/v1/checkout/sessions", "/checkout/sessions"}
	priceFields       = []string{"price_id", "price"}
	checkoutURLFields = []string{"url", "checkout_url", "hosted_page_url"}
)

// Customer 是可选的下单用户信息。
type Customer struct {
	UserID string
	Email  string
}

// CheckoutRequest 结账请求
type CheckoutRequest struct {
	Plan Plan
	// Origin 用于拼接 success_url / cancel_url
	Origin   string
	Customer Customer
}

// Recorder 接收结账尝试指标。
type Recorder interface {
	RecordCheckoutAttempt(plan string, status int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCheckoutAttempt(string, int) {}

// Service 结账服务客户端
type Service struct {
	cfg      Config
	client   *http.Client
	recorder Recorder
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option 配置 Service。
type Option func(*Service)

// WithHTTPClient 替换默认 HTTP 客户端。
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRecorder 设置指标接收器。
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService 创建结账服务。
func NewService(cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:      cfg,
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = tlsutil.SecureHTTPClient(cfg.Timeout, tlsutil.WithResponseHeaderTimeout(cfg.Timeout))
	}
	s.logger = s.logger.With(zap.String("component", "billing"))
	return s
}

// Status 返回结账配置摘要。
func (s *Service) Status() Status {
	return s.cfg.Status()
}

// AppURL 返回配置的回跳来源，可能为空。
func (s *Service) AppURL() string {
	return s.cfg.AppURL
}

// sessionPayload 结账会话请求体
type sessionPayload struct {
	Mode          string          `json:"mode"`
	SuccessURL    string          `json:"success_url"`
	CancelURL     string          `json:"cancel_url"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Metadata      sessionMetadata `json:"metadata"`
}

type sessionMetadata struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Plan   Plan   `json:"plan"`
	App    string `json:"app"`
}

func (p sessionPayload) encode(priceField, priceID string) ([]byte, error) {
	base, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	m[priceField], _ = json.Marshal(priceID)
	return json.Marshal(m)
}

// Checkout 返回一个可跳转的结账链接。
//
// 返回的 error 可能是 ErrInvalidPlan、ErrNotConfigured、*UpstreamError，
// 或请求无法发出时的传输错误。
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (string, error) {
	if _, ok := ParsePlan(string(req.Plan)); !ok {
		return "", ErrInvalidPlan
	}

	if direct := s.cfg.DirectURL(req.Plan); direct != "" {
		return direct, nil
	}

	priceID := s.cfg.PriceID(req.Plan)
	if s.cfg.APIKey == "" || priceID == "" {
		return "", ErrNotConfigured
	}

	ctx, span := s.tracer.Start(ctx, "billing.checkout",
		trace.WithAttributes(attribute.String("billing.plan", string(req.Plan))))
	defer span.End()

	origin := strings.TrimRight(req.Origin, "/")
	payload := sessionPayload{
		Mode:          "subscription",
		SuccessURL:    origin + "/pricing?status=success",
		CancelURL:     origin + "/pricing?status=cancelled",
		CustomerEmail: req.Customer.Email,
		Metadata: sessionMetadata{
			UserID: req.Customer.UserID,
			Email:  req.Customer.Email,
			Plan:   req.Plan,
			App:    AppTag,
		},
	}

	base := strings.TrimRight(s.cfg.APIBase, "/")
	lastStatus := 0
	lastText := ""

	for _, endpoint := range checkoutEndpoints {
		for _, field := range priceFields {
			body, err := payload.encode(field, priceID)
			if err != nil {
				return "", fmt.Errorf("billing: encode payload: %w", err)
			}

			status, raw, err := s.post(ctx, base+endpoint, body)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "transport error")
				return "", err
			}
			s.recorder.RecordCheckoutAttempt(string(req.Plan), status)

			if status >= 200 && status < 300 {
				if url := checkoutURL(raw); url != "" {
					return url, nil
				}
				continue
			}

			lastStatus, lastText = status, string(raw)
			s.logger.Warn("checkout attempt failed",
				zap.String("endpoint", endpoint),
				zap.String("price_field", field),
				zap.Int("status", status))

			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				span.SetStatus(codes.Error, "rejected")
				return "", &UpstreamError{Status: status, Detail: lastText, Aborted: true}
			}
		}
	}

	if lastStatus == 0 {
		lastStatus = http.StatusInternalServerError
	}
	span.SetStatus(codes.Error, "exhausted")
	return "", &UpstreamError{Status: lastStatus, Detail: lastText}
}

func (s *Service) post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("billing: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("billing: checkout request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode, raw, nil
}

// checkoutURL 取响应中第一个非空的结账链接字段。
func checkoutURL(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	for _, field := range checkoutURLFields {
		if v := gjson.GetBytes(raw, field); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// Origin 推导回跳来源：优先使用配置的 AppURL，否则由转发头与 Host 拼接。
func Origin(appURL string, h http.Header, host string) string {
	if appURL != "" {
		return appURL
	}
	proto := h.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
	}
	if fwd := h.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	if host == "" {
		host = "localhost:3000"
	}
	return proto + "://" + host
}
