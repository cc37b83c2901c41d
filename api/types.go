package api

import (
	"encoding/json"

	"github.com/BaSui01/imageflow/billing"
	"github.com/BaSui01/imageflow/llm/image"
	"github.com/BaSui01/imageflow/types"
)

// =============================================================================
// 图片编辑类型
// =============================================================================

// GenerateRequest 表示图片编辑请求。
// @Description 图片编辑请求结构
type GenerateRequest struct {
	// 编辑指令
	Prompt string `json:"prompt" example:"make the sky purple" binding:"required"`
	// 输入图片（data URL、http(s) URL 或裸 base64）
	Image string `json:"image" example:"data:image/png;base64,iVBORw0..." binding:"required"`
	// 可选的模型覆盖
	Model string `json:"model,omitempty" example:"google/gemini-2.5-flash-image-preview"`
}

// GenerateResponse 表示成功的编辑结果。
// @Description 图片编辑成功响应
type GenerateResponse struct {
	// 规范化后的图片（URL 或 data URL），按发现顺序去重
	Images []string `json:"images"`
	// 诊断文本片段（最多 3 条）
	Texts []string `json:"texts"`
	// 产出图片的上游原始响应
	Raw json.RawMessage `json:"raw"`
}

// NoImageResponse 表示所有尝试均未产出图片。
// @Description 检索耗尽响应
type NoImageResponse struct {
	Error      string          `json:"error" example:"No image found in model output"`
	Hint       string          `json:"hint"`
	Reason     FailureReason   `json:"reason"`
	RawPreview string          `json:"rawPreview"`
	Tried      []image.Attempt `json:"tried"`
}

// FailureReason 粗粒度失败原因
type FailureReason struct {
	Code   string `json:"code" example:"rate_limited"`
	Detail string `json:"detail"`
}

// UpstreamErrorResponse 表示上游拒绝（凭证或结账服务错误）。
// @Description 上游错误响应
type UpstreamErrorResponse struct {
	Message string `json:"message" example:"upstream_error_403"`
	Detail  string `json:"detail"`
}

// ErrorResponse 表示简单错误。
// @Description 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse 表示以 message 字段描述的错误。
type MessageResponse struct {
	Message string `json:"message"`
}

// =============================================================================
// 身份与结账类型
// =============================================================================

// UserResponse 表示当前用户，匿名时 User 为 nil。
// @Description 当前用户响应
type UserResponse struct {
	User *types.Identity `json:"user"`
}

// BillingConfigResponse 结账配置摘要
type BillingConfigResponse = billing.Status

// CheckoutRequest 结账请求
type CheckoutRequest struct {
	Plan string `json:"plan" example:"pro"`
}

// CheckoutResponse 结账链接
type CheckoutResponse struct {
	URL string `json:"url"`
}
