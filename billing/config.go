package billing

import "time"

const (
	// DefaultAPIBase 结账服务默认地址
	DefaultAPIBase = "https://api.creem.io"
	// DefaultTimeout 单次结账请求超时
	DefaultTimeout = 30 * time.Second
	// AppTag 写入会话元数据的应用标识
	AppTag = "nano-banana"
)

// Plan 订阅套餐
type Plan string

const (
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// ParsePlan 校验套餐名称，大小写敏感。
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanPro, PlanBusiness:
		return Plan(s), true
	default:
		return "", false
	}
}

// Mode 结账模式
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeAPI    Mode = "api"
	ModeUnset  Mode = "unset"
)

// Config 结账配置
type Config struct {
	APIKey              string        `json:"api_key" yaml:"api_key"`
	APIBase             string        `json:"api_base" yaml:"api_base"`
	PriceIDPro          string        `json:"price_id_pro" yaml:"price_id_pro"`
	PriceIDBusiness     string        `json:"price_id_business" yaml:"price_id_business"`
	CheckoutURLPro      string        `json:"checkout_url_pro" yaml:"checkout_url_pro"`
	CheckoutURLBusiness string        `json:"checkout_url_business" yaml:"checkout_url_business"`
	AppURL              string        `json:"app_url" yaml:"app_url"`
	Timeout             time.Duration `json:"timeout" yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// PriceID 返回套餐对应的价格 ID。
func (c Config) PriceID(p Plan) string {
	if p == PlanBusiness {
		return c.PriceIDBusiness
	}
	return c.PriceIDPro
}

// DirectURL 返回套餐对应的直连结账链接。
func (c Config) DirectURL(p Plan) string {
	if p == PlanBusiness {
		return c.CheckoutURLBusiness
	}
	return c.CheckoutURLPro
}

// Enabled 表示各套餐是否配置了直连链接。
type Enabled struct {
	Pro      bool `json:"pro"`
	Business bool `json:"business"`
}

// Status 是对外公开的结账配置摘要，不含任何密钥。
type Status struct {
	Mode    Mode    `json:"mode"`
	Enabled Enabled `json:"enabled"`
}

// Status 计算当前结账模式。
func (c Config) Status() Status {
	enabled := Enabled{
		Pro:      c.CheckoutURLPro != "",
		Business: c.CheckoutURLBusiness != "",
	}
	mode := ModeUnset
	switch {
	case enabled.Pro || enabled.Business:
		mode = ModeDirect
	case c.APIKey != "":
		mode = ModeAPI
	}
	return Status{Mode: mode, Enabled: enabled}
}
