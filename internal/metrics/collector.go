// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 图片检索指标
	imageAttemptsTotal   *prometheus.CounterVec
	imageAttemptDuration *prometheus.HistogramVec
	imageImagesExtracted *prometheus.CounterVec
	imageRequestsTotal   *prometheus.CounterVec

	// 结账指标
	checkoutAttemptsTotal *prometheus.CounterVec

	// 限流指标
	rateLimitedTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 图片检索指标
	c.imageAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_attempts_total",
			Help:      "Total number of upstream image attempts",
		},
		[]string{"model", "variant", "status"},
	)

	c.imageAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_attempt_duration_seconds",
			Help:      "Upstream image attempt duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "variant"},
	)

	c.imageImagesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_images_extracted_total",
			Help:      "Total number of images extracted from upstream responses",
		},
		[]string{"model", "variant"},
	)

	c.imageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_requests_total",
			Help:      "Total number of image edit requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	// 结账指标
	c.checkoutAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Total number of checkout session attempts",
		},
		[]string{"plan", "status"},
	)

	c.rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordRateLimited 记录被限流拒绝的请求
func (c *Collector) RecordRateLimited() {
	c.rateLimitedTotal.Inc()
}

// =============================================================================
// 🖼️ 图片检索指标记录
// =============================================================================

// RecordImageAttempt 记录一次上游尝试。status 为 0 表示传输失败。
func (c *Collector) RecordImageAttempt(model, variant string, status, images int, duration time.Duration) {
	c.imageAttemptsTotal.WithLabelValues(model, variant, upstreamStatus(status)).Inc()
	c.imageAttemptDuration.WithLabelValues(model, variant).Observe(duration.Seconds())
	if images > 0 {
		c.imageImagesExtracted.WithLabelValues(model, variant).Add(float64(images))
	}
}

// RecordImageOutcome 记录一次编辑请求的终态
func (c *Collector) RecordImageOutcome(outcome string) {
	c.imageRequestsTotal.WithLabelValues(outcome).Inc()
}

// =============================================================================
// 💳 结账指标记录
// =============================================================================

// RecordCheckoutAttempt 记录一次结账会话创建尝试
func (c *Collector) RecordCheckoutAttempt(plan string, status int) {
	c.checkoutAttemptsTotal.WithLabelValues(plan, upstreamStatus(status)).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// upstreamStatus 保留上游的精确状态码，401/403/429 需要单独区分
func upstreamStatus(code int) string {
	if code <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(code)
}
