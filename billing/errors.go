package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlan 套餐名称不合法
	ErrInvalidPlan = errors.New("billing: invalid plan")
	// ErrNotConfigured 缺少 API Key 或价格 ID
	ErrNotConfigured = errors.New("billing: checkout is not configured")
)

// UpstreamError 表示结账服务拒绝或全部组合失败。
type UpstreamError struct {
	Status int
	Detail string
	// Aborted 为 true 时表示因 401/403 提前终止
	Aborted bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("billing: checkout upstream failed with status %d", e.Status)
}

// Tag 返回对外暴露的错误标签。
func (e *UpstreamError) Tag() string {
	return fmt.Sprintf("creem_error_%d", e.Status)
}
