package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BaSui01/imageflow/api/handlers"
	"github.com/BaSui01/imageflow/billing"
	"github.com/BaSui01/imageflow/config"
	"github.com/BaSui01/imageflow/internal/metrics"
	"github.com/BaSui01/imageflow/internal/server"
	"github.com/BaSui01/imageflow/internal/telemetry"
	"github.com/BaSui01/imageflow/llm/image"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 ImageFlow 的主服务器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers

	// 指标命名空间，测试中替换以避免重复注册
	metricsNamespace string

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler   *handlers.HealthHandler
	generateHandler *handlers.GenerateHandler
	billingHandler  *handlers.BillingHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:              cfg,
		logger:           logger,
		telemetry:        providers,
		metricsNamespace: "imageflow",
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	s.init()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if s.cfg.Server.MetricsPort > 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("tls", s.cfg.Server.TLSCertFile != ""),
	)
	return nil
}

// init 初始化指标收集器与 handlers
func (s *Server) init() {
	s.metricsCollector = metrics.NewCollector(s.metricsNamespace, s.logger)

	editor := image.NewEditor(s.cfg.Gateway.ImageConfig(),
		image.WithLogger(s.logger),
		image.WithRecorder(s.metricsCollector),
	)
	s.generateHandler = handlers.NewGenerateHandler(editor, s.logger)

	checkout := billing.NewService(s.cfg.Billing.CheckoutConfig(),
		billing.WithLogger(s.logger),
		billing.WithRecorder(s.metricsCollector),
	)
	s.billingHandler = handlers.NewBillingHandler(checkout, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewCredentialCheck("gateway_credential", s.cfg.Gateway.APIKey))

	if s.cfg.Gateway.APIKey == "" {
		s.logger.Warn("gateway API key not configured, /api/generate will return 500")
	} else {
		s.logger.Info("Image editor initialized",
			zap.String("base_url", s.cfg.Gateway.BaseURL),
			zap.String("default_model", s.cfg.Gateway.DefaultModel),
			zap.String("api_key", maskSecret(s.cfg.Gateway.APIKey)),
			zap.Int("attempts_planned", len(editor.Plan(""))),
		)
	}
	s.logger.Info("Billing initialized", zap.String("mode", string(checkout.Status().Mode)))
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册所有 API 路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// API 路由
	mux.HandleFunc("POST /api/generate", s.generateHandler.HandleGenerate)
	mux.HandleFunc("GET /api/auth/user", handlers.HandleAuthUser)
	mux.HandleFunc("GET /api/billing/config", s.billingHandler.HandleConfig)
	mux.HandleFunc("POST /api/billing/checkout", s.billingHandler.HandleCheckout)

	return mux
}

// handler 构建带中间件链的根 handler
func (s *Server) handler(ctx context.Context) http.Handler {
	sc := s.cfg.Server
	return Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(sc.CORSAllowedOrigins),
		RateLimiter(ctx, float64(sc.RateLimitRPS), sc.RateLimitBurst, s.metricsCollector, s.logger),
		BodyLimit(sc.MaxBodyBytes),
		Identity(s.cfg.Identity, s.logger),
	)
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		TLSCertFile:     s.cfg.Server.TLSCertFile,
		TLSKeyFile:      s.cfg.Server.TLSKeyFile,
	}

	s.httpManager = server.NewManager(s.handler(rateLimiterCtx), serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.ListenAddr()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.metricsManager.ListenAddr()))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	if err := s.Shutdown(context.Background()); err != nil {
		s.logger.Error("Shutdown error", zap.Error(err))
	}
}

// Shutdown 并发关闭 HTTP、Metrics 与遥测，返回第一个错误
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Starting graceful shutdown...")

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.httpManager != nil {
		g.Go(func() error {
			if err := s.httpManager.Shutdown(gctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	if s.metricsManager != nil {
		g.Go(func() error {
			if err := s.metricsManager.Shutdown(gctx); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	err := g.Wait()

	// 遥测在服务器排空之后刷新
	tctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if terr := s.telemetry.Shutdown(tctx); terr != nil {
		s.logger.Warn("Telemetry shutdown error", zap.Error(terr))
	}

	if err == nil {
		s.logger.Info("Graceful shutdown completed")
	}
	return err
}
