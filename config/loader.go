// =============================================================================
// 📦 ImageFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("IMAGEFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 兼容别名环境变量 → 前缀环境变量
// =============================================================================
package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 ImageFlow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Gateway 上游推理网关配置
	Gateway GatewayConfig `yaml:"gateway" env:"GATEWAY"`

	// Identity 身份令牌配置
	Identity IdentityConfig `yaml:"identity" env:"IDENTITY"`

	// Billing 订阅结账配置
	Billing BillingConfig `yaml:"billing" env:"BILLING"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需覆盖整个顺序检索
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 请求体大小上限（字节），图片以 data URL 形式内联
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	// CORS 允许的来源，空表示拒绝所有跨域请求（不带 Origin 的请求不受影响）
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每个 IP 的限流速率（请求/秒），0 表示关闭
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// TLS 证书文件，与私钥同时配置时启用 HTTPS
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	// TLS 私钥文件
	TLSKeyFile string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// GatewayConfig 上游推理网关配置
type GatewayConfig struct {
	// API Key（Bearer）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 默认模型
	DefaultModel string `yaml:"default_model" env:"DEFAULT_MODEL"`
	// 兜底模型，按顺序尝试
	FallbackModels []string `yaml:"fallback_models" env:"FALLBACK_MODELS"`
	// HTTP-Referer 头
	AppURL string `yaml:"app_url" env:"APP_URL"`
	// X-Title 头
	AppTitle string `yaml:"app_title" env:"APP_TITLE"`
	// 单次尝试超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 整个检索的总超时，0 表示不限制
	SearchTimeout time.Duration `yaml:"search_timeout" env:"SEARCH_TIMEOUT"`
}

// IdentityConfig 身份令牌配置。未配置密钥时所有请求均视为匿名。
type IdentityConfig struct {
	// HMAC 密钥（HS256）
	Secret string `yaml:"secret" env:"SECRET"`
	// RSA 公钥 PEM（RS256）
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	// 期望的签发者
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// 期望的受众
	Audience string `yaml:"audience" env:"AUDIENCE"`
	// 携带令牌的 Cookie 名称
	CookieName string `yaml:"cookie_name" env:"COOKIE_NAME"`
}

// Enabled 报告是否配置了验签密钥
func (c IdentityConfig) Enabled() bool {
	return c.Secret != "" || c.PublicKey != ""
}

// BillingConfig 订阅结账配置
type BillingConfig struct {
	// 结账服务 API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 结账服务基础 URL
	APIBase string `yaml:"api_base" env:"API_BASE"`
	// Pro 套餐价格 ID
	PriceIDPro string `yaml:"price_id_pro" env:"PRICE_ID_PRO"`
	// Business 套餐价格 ID
	PriceIDBusiness string `yaml:"price_id_business" env:"PRICE_ID_BUSINESS"`
	// Pro 套餐直连结账链接
	CheckoutURLPro string `yaml:"checkout_url_pro" env:"CHECKOUT_URL_PRO"`
	// Business 套餐直连结账链接
	CheckoutURLBusiness string `yaml:"checkout_url_business" env:"CHECKOUT_URL_BUSINESS"`
	// 回跳地址的来源，空时从请求头推导
	AppURL string `yaml:"app_url" env:"APP_URL"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔗 兼容别名
// =============================================================================

// DefaultEnvAliases 把无前缀的部署环境变量映射到配置字段路径（不含前缀）。
// 同名的前缀变量优先级更高。
var DefaultEnvAliases = map[string]string{
	"GATEWAY_API_KEY":               "OPENROUTER_API_KEY",
	"GATEWAY_BASE_URL":              "OPENROUTER_BASE_URL",
	"GATEWAY_DEFAULT_MODEL":         "OPENROUTER_IMAGE_MODEL",
	"GATEWAY_APP_URL":               "NEXT_PUBLIC_APP_URL",
	"BILLING_APP_URL":               "NEXT_PUBLIC_APP_URL",
	"BILLING_API_KEY":               "CREEM_API_KEY",
	"BILLING_API_BASE":              "CREEM_API_BASE",
	"BILLING_PRICE_ID_PRO":          "CREEM_PRICE_ID_PRO",
	"BILLING_PRICE_ID_BUSINESS":     "CREEM_PRICE_ID_BUSINESS",
	"BILLING_CHECKOUT_URL_PRO":      "CREEM_CHECKOUT_URL_PRO",
	"BILLING_CHECKOUT_URL_BUSINESS": "CREEM_CHECKOUT_URL_BUSINESS",
	"IDENTITY_SECRET":               "SUPABASE_JWT_SECRET",
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	aliases    map[string]string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "IMAGEFLOW",
		aliases:    DefaultEnvAliases,
		lookupEnv:  os.LookupEnv,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnvAliases 替换兼容别名表，传 nil 关闭别名
func (l *Loader) WithEnvAliases(aliases map[string]string) *Loader {
	l.aliases = aliases
	return l
}

// WithEnvLookup 替换环境变量读取函数，用于测试注入
func (l *Loader) WithEnvLookup(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), "")
}

// setFieldsFromEnv 递归设置结构体字段，path 为不含前缀的字段路径
func (l *Loader) setFieldsFromEnv(v reflect.Value, path string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		fieldPath := envTag
		if path != "" {
			fieldPath = path + "_" + envTag
		}

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		envKey, envValue := l.lookup(fieldPath)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// lookup 先查前缀变量，再查兼容别名
func (l *Loader) lookup(fieldPath string) (string, string) {
	key := fieldPath
	if l.envPrefix != "" {
		key = l.envPrefix + "_" + fieldPath
	}
	if v, ok := l.lookupEnv(key); ok && v != "" {
		return key, v
	}
	if alias, ok := l.aliases[fieldPath]; ok {
		if v, ok := l.lookupEnv(alias); ok && v != "" {
			return alias, v
		}
	}
	return key, ""
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置。缺失的网关凭证不算错误，请求时以 500 报告。
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, "max_body_bytes must be positive")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}

	if _, err := url.ParseRequestURI(c.Gateway.BaseURL); err != nil {
		errs = append(errs, "gateway base_url must be an absolute URL")
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, "gateway timeout must be positive")
	}
	if c.Gateway.SearchTimeout < 0 {
		errs = append(errs, "gateway search_timeout must not be negative")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
