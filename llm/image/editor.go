package image

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// 请求终态，用于指标标签
const (
	OutcomeSuccess       = "success"
	OutcomeExhausted     = "exhausted"
	OutcomeUpstreamAuth  = "upstream_auth"
	OutcomeInvalid       = "invalid"
	OutcomeNotConfigured = "not_configured"
)

// Editor 在候选尝试上做顺序检索，直到拿到图片、遇到 401/403 或尝试耗尽。
type Editor struct {
	cfg      Config
	gateway  Gateway
	recorder Recorder
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option 配置 Editor。
type Option func(*Editor)

// WithGateway 替换默认的 HTTP 网关客户端。
func WithGateway(g Gateway) Option {
	return func(e *Editor) { e.gateway = g }
}

// WithLogger 设置日志记录器。
func WithLogger(logger *zap.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder 设置指标接收器。
func WithRecorder(r Recorder) Option {
	return func(e *Editor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewEditor 创建编辑器。未指定网关时使用基于 cfg 的 GatewayClient。
func NewEditor(cfg Config, opts ...Option) *Editor {
	e := &Editor{
		cfg:      cfg.withDefaults(),
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "image_editor"))
	if e.gateway == nil {
		e.gateway = NewGatewayClient(e.cfg, e.logger)
	}
	return e
}

// Plan 返回给定模型覆盖下的完整尝试序列。
func (e *Editor) Plan(override string) []Attempt {
	return PlanAttempts(PlanModels(override, e.cfg.DefaultModel, e.cfg.FallbackModels))
}

// lastFailure 只保留最近一次失败。
type lastFailure struct {
	status int
	body   []byte
}

// Edit 执行一次编辑检索。
//
// 返回的 error 只可能是 ErrMissingInput、ErrNotConfigured、
// *UpstreamAuthError 或 *ExhaustedError。
func (e *Editor) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.Image) == "" {
		e.recorder.RecordImageOutcome(OutcomeInvalid)
		return nil, ErrMissingInput
	}
	if e.cfg.APIKey == "" {
		e.recorder.RecordImageOutcome(OutcomeNotConfigured)
		return nil, ErrNotConfigured
	}

	attempts := e.Plan(req.Model)

	ctx, span := e.tracer.Start(ctx, "image.edit",
		trace.WithAttributes(attribute.Int("image.attempts_planned", len(attempts))))
	defer span.End()

	if e.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SearchTimeout)
		defer cancel()
	}

	input := EditInput{Prompt: req.Prompt, Image: req.Image}
	tried := make([]Attempt, 0, len(attempts))
	var last *lastFailure

	for _, a := range attempts {
		if ctx.Err() != nil {
			e.logger.Warn("search stopped before exhausting attempts",
				zap.Int("tried", len(tried)),
				zap.Int("planned", len(attempts)),
				zap.Error(ctx.Err()))
			break
		}
		tried = append(tried, a)

		out := e.gateway.Call(ctx, a, input)
		if !out.OK {
			e.recorder.RecordImageAttempt(a.Model, string(a.Variant), out.Status, 0, out.Duration)
			e.logger.Info("attempt failed",
				zap.String("model", a.Model),
				zap.String("variant", string(a.Variant)),
				zap.Int("status", out.Status))

			if out.Status == http.StatusUnauthorized || out.Status == http.StatusForbidden {
				e.recorder.RecordImageOutcome(OutcomeUpstreamAuth)
				span.SetAttributes(attribute.Int("image.attempts_tried", len(tried)))
				return nil, &UpstreamAuthError{Status: out.Status, Detail: out.Text, Attempt: a}
			}
			last = &lastFailure{status: out.Status, body: out.Body}
			continue
		}

		found := Scan(out.Body)
		e.recorder.RecordImageAttempt(a.Model, string(a.Variant), out.Status, len(found.Images), out.Duration)
		e.logger.Info("attempt completed",
			zap.String("model", a.Model),
			zap.String("variant", string(a.Variant)),
			zap.Int("status", out.Status),
			zap.Int("images", len(found.Images)))

		if len(found.Images) > 0 {
			e.recorder.RecordImageOutcome(OutcomeSuccess)
			span.SetAttributes(
				attribute.Int("image.attempts_tried", len(tried)),
				attribute.String("image.model", a.Model),
			)
			return &EditResult{
				Images:  found.Images,
				Texts:   found.Texts,
				Raw:     out.Body,
				Model:   a.Model,
				Variant: a.Variant,
			}, nil
		}
		last = &lastFailure{status: out.Status, body: out.Body}
	}

	span.SetAttributes(attribute.Int("image.attempts_tried", len(tried)))
	e.recorder.RecordImageOutcome(OutcomeExhausted)
	return nil, e.exhausted(last, tried)
}

func (e *Editor) exhausted(last *lastFailure, tried []Attempt) *ExhaustedError {
	err := &ExhaustedError{
		Reason:     NewFailureReason(ReasonUnknown),
		RawPreview: Preview(nil, RawPreviewLimit),
		Tried:      tried,
	}
	if last != nil {
		err.Reason = Classify(last.status, last.body)
		err.RawPreview = Preview(last.body, RawPreviewLimit)
		err.LastStatus = last.status
	}

	logPreview, _ := truncateRunes(err.RawPreview, logPreviewLimit)
	e.logger.Warn("no image found in model output",
		zap.Int("last_status", err.LastStatus),
		zap.String("reason", string(err.Reason.Code)),
		zap.Int("tried", len(tried)),
		zap.String("preview", logPreview))
	return err
}
