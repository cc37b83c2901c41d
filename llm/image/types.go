package image

import (
	"context"
	"encoding/json"
	"time"
)

// Variant 是同一 (prompt, image) 对的请求线格式。
type Variant string

const (
	// VariantChat 对应 chat-completions 风格的多段消息。
	VariantChat Variant = "chat-openai"
	// VariantResponses 对应 responses 风格的结构化 input 列表。
	VariantResponses Variant = "responses-openrouter"
)

// Variants 是每个模型依次尝试的线格式顺序。
var Variants = []Variant{VariantChat, VariantResponses}

// Attempt 是一次 (model, variant) 组合。
type Attempt struct {
	Model   string  `json:"model"`
	Variant Variant `json:"variant"`
}

// EditRequest 是一次编辑请求。Model 为可选的模型覆盖。
type EditRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
	Model  string `json:"model,omitempty"`
}

// EditInput 是发往上游的编辑内容，每次尝试相同。
type EditInput struct {
	Prompt string
	Image  string
}

// AttemptOutcome 是一次上游调用的结果。
// Body 始终是合法 JSON：非 JSON 响应被包装为 {"raw": "..."}，
// 传输失败被包装为 {"error": "..."} 且 Status 为 0。
// Text 保留上游原始响应文本。
type AttemptOutcome struct {
	OK       bool
	Status   int
	Body     json.RawMessage
	Text     string
	Duration time.Duration
}

// ExtractedResult 是一次响应扫描的结果。
type ExtractedResult struct {
	Images []string `json:"images"`
	Texts  []string `json:"texts"`
}

// EditResult 是成功终态。
type EditResult struct {
	Images  []string        `json:"images"`
	Texts   []string        `json:"texts"`
	Raw     json.RawMessage `json:"raw"`
	Model   string          `json:"-"`
	Variant Variant         `json:"-"`
}

// Gateway 调用上游推理网关。实现不得返回 error，
// 所有失败都编码进 AttemptOutcome。
type Gateway interface {
	Call(ctx context.Context, attempt Attempt, input EditInput) AttemptOutcome
}

// Recorder 接收每次尝试与每次请求终态的观测数据。
type Recorder interface {
	RecordImageAttempt(model, variant string, status, images int, duration time.Duration)
	RecordImageOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordImageAttempt(string, string, int, int, time.Duration) {}
func (nopRecorder) RecordImageOutcome(string)                                  {}
