package image

import (
	"bytes"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

// ReasonCode 是失败原因分类。
type ReasonCode string

const (
	ReasonAuth             ReasonCode = "auth"
	ReasonQuota            ReasonCode = "quota"
	ReasonPermission       ReasonCode = "permission"
	ReasonNotFound         ReasonCode = "not_found"
	ReasonRateLimited      ReasonCode = "rate_limited"
	ReasonUnsupportedModel ReasonCode = "unsupported_model"
	ReasonNoImage          ReasonCode = "no_image"
	// ReasonUnknown 仅用于从未记录过失败的情况
	ReasonUnknown ReasonCode = "unknown"
)

// FailureReason 是带可读说明的失败分类。
type FailureReason struct {
	Code   ReasonCode `json:"code"`
	Detail string     `json:"detail"`
}

var reasonDetails = map[ReasonCode]string{
	ReasonAuth:             "Authentication failed (401).",
	ReasonQuota:            "Insufficient credits/quota (402).",
	ReasonPermission:       "Permission denied (403).",
	ReasonNotFound:         "Model or endpoint not found (404).",
	ReasonRateLimited:      "Rate limited (429).",
	ReasonUnsupportedModel: "Model likely does not return images for this request.",
	ReasonNoImage:          "No image in provider response.",
	ReasonUnknown:          "No upstream failure was recorded.",
}

var (
	quotaPattern       = regexp.MustCompile(`insufficient|quota|credit|payment required`)
	permissionPattern  = regexp.MustCompile(`not allowed|forbidden|permission`)
	rateLimitPattern   = regexp.MustCompile(`rate limit|too many requests`)
	unsupportedPattern = regexp.MustCompile(`does not support image|text-only|no image support`)
)

// NewFailureReason 返回带标准说明的 FailureReason。
func NewFailureReason(code ReasonCode) FailureReason {
	return FailureReason{Code: code, Detail: reasonDetails[code]}
}

// Classify 根据状态码与响应体判定失败原因，首个命中的规则生效。
// 响应体按小写文本匹配。
func Classify(status int, body []byte) FailureReason {
	lower := strings.ToLower(string(body))
	switch {
	case status == http.StatusUnauthorized:
		return NewFailureReason(ReasonAuth)
	case status == http.StatusPaymentRequired || quotaPattern.MatchString(lower):
		return NewFailureReason(ReasonQuota)
	case status == http.StatusForbidden || permissionPattern.MatchString(lower):
		return NewFailureReason(ReasonPermission)
	case status == http.StatusNotFound:
		return NewFailureReason(ReasonNotFound)
	case status == http.StatusTooManyRequests || rateLimitPattern.MatchString(lower):
		return NewFailureReason(ReasonRateLimited)
	case unsupportedPattern.MatchString(lower):
		return NewFailureReason(ReasonUnsupportedModel)
	default:
		return NewFailureReason(ReasonNoImage)
	}
}

const (
	// RawPreviewLimit 是 rawPreview 的最大字符数（不含省略号）。
	RawPreviewLimit = 800
	logPreviewLimit = 200
	ellipsis        = "…"
)

// Preview 把响应体压缩为单行 JSON，超过 limit 个字符时截断并追加省略号。
// nil 响应体输出 "null"。
func Preview(body []byte, limit int) string {
	if len(body) == 0 {
		return "null"
	}
	s := string(body)
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil {
		s = buf.String()
	}
	if cut, ok := truncateRunes(s, limit); ok {
		return cut + ellipsis
	}
	return s
}

// truncateRunes 按字符截断，返回是否发生了截断。
func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
