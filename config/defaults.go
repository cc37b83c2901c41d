// =============================================================================
// 📦 ImageFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/imageflow/billing"
	"github.com/BaSui01/imageflow/llm/image"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Gateway:   DefaultGatewayConfig(),
		Identity:  DefaultIdentityConfig(),
		Billing:   DefaultBillingConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    20 << 20,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultGatewayConfig 返回默认网关配置
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		BaseURL:        image.DefaultBaseURL,
		DefaultModel:   image.DefaultModel,
		FallbackModels: append([]string(nil), image.DefaultFallbackModels...),
		AppURL:         image.DefaultAppURL,
		AppTitle:       image.DefaultAppTitle,
		Timeout:        image.DefaultTimeout,
		SearchTimeout:  image.DefaultSearchTimeout,
	}
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		CookieName: "sb-access-token",
	}
}

// DefaultBillingConfig 返回默认结账配置
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		APIBase: billing.DefaultAPIBase,
		Timeout: billing.DefaultTimeout,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "imageflow",
		SampleRate:   0.1,
	}
}

// ImageConfig 把网关配置转换为编辑器配置
func (c GatewayConfig) ImageConfig() image.Config {
	fallbacks := make([]string, len(c.FallbackModels))
	copy(fallbacks, c.FallbackModels)
	return image.Config{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		DefaultModel:   c.DefaultModel,
		FallbackModels: fallbacks,
		AppURL:         c.AppURL,
		AppTitle:       c.AppTitle,
		Timeout:        c.Timeout,
		SearchTimeout:  c.SearchTimeout,
	}
}

// CheckoutConfig 把结账配置转换为 billing 服务配置
func (c BillingConfig) CheckoutConfig() billing.Config {
	return billing.Config{
		APIKey:              c.APIKey,
		APIBase:             c.APIBase,
		PriceIDPro:          c.PriceIDPro,
		PriceIDBusiness:     c.PriceIDBusiness,
		CheckoutURLPro:      c.CheckoutURLPro,
		CheckoutURLBusiness: c.CheckoutURLBusiness,
		AppURL:              c.AppURL,
		Timeout:             c.Timeout,
	}
}
