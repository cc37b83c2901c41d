package image

import "time"

// 上游网关默认值
const (
	DefaultBaseURL       = "https://openrouter.ai/api/v1"
	DefaultModel         = "stability-ai/stable-image-ultra"
	DefaultAppURL        = "http://localhost:3000"
	DefaultAppTitle      = "Nano Banana"
	DefaultTimeout       = 120 * time.Second
	DefaultSearchTimeout = 5 * time.Minute
)

// DefaultFallbackModels 是在主模型之后依次尝试的通用图像模型。
var DefaultFallbackModels = []string{
	"stability-ai/stable-image-ultra",
	"black-forest-labs/flux-1.1-pro",
}

// Config 配置上游网关与检索行为。
type Config struct {
	APIKey         string        `json:"api_key" yaml:"api_key"`
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	DefaultModel   string        `json:"default_model" yaml:"default_model"`
	FallbackModels []string      `json:"fallback_models" yaml:"fallback_models"`
	AppURL         string        `json:"app_url" yaml:"app_url"`
	AppTitle       string        `json:"app_title" yaml:"app_title"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// SearchTimeout 限制整个顺序检索的总时长，0 表示不限制。
	SearchTimeout time.Duration `json:"search_timeout,omitempty" yaml:"search_timeout,omitempty"`
}

// DefaultConfig 返回默认网关配置（不含凭证）。
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		DefaultModel:   DefaultModel,
		FallbackModels: append([]string(nil), DefaultFallbackModels...),
		AppURL:         DefaultAppURL,
		AppTitle:       DefaultAppTitle,
		Timeout:        DefaultTimeout,
		SearchTimeout:  DefaultSearchTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.DefaultModel == "" {
		c.DefaultModel = d.DefaultModel
	}
	if c.FallbackModels == nil {
		c.FallbackModels = d.FallbackModels
	}
	if c.AppURL == "" {
		c.AppURL = d.AppURL
	}
	if c.AppTitle == "" {
		c.AppTitle = d.AppTitle
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
