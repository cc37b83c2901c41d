package image

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput 表示 prompt 或 image 缺失，未发起任何上游调用。
	ErrMissingInput = errors.New("image: missing prompt or image")
	// ErrNotConfigured 表示网关凭证未配置。
	ErrNotConfigured = errors.New("image: gateway api key is not configured")
)

// UpstreamAuthError 表示上游返回 401/403，检索被提前终止。
type UpstreamAuthError struct {
	Status  int
	Detail  string
	Attempt Attempt
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("upstream rejected credentials: status=%d model=%s variant=%s",
		e.Status, e.Attempt.Model, e.Attempt.Variant)
}

// Tag 返回对外暴露的错误标签。
func (e *UpstreamAuthError) Tag() string {
	return fmt.Sprintf("upstream_error_%d", e.Status)
}

// ExhaustedError 表示所有尝试都未产出图片。
type ExhaustedError struct {
	Reason     FailureReason
	RawPreview string
	Tried      []Attempt
	LastStatus int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no image found after %d attempts: %s", len(e.Tried), e.Reason.Code)
}

// ExhaustedHint 是耗尽时给调用方的排查建议。
const ExhaustedHint = "Tried multiple providers/endpoints. The current model may only return text or you may lack permissions/credits."
