package image

import (
	"regexp"
	"strings"
)

const (
	dataImagePrefix = "data:image"
	pngDataPrefix   = "data:image/png;base64,"

	// 短于此长度的字母数字串不视为 base64 图片
	minBase64Len = 64
)

var (
	httpURLPattern     = regexp.MustCompile(`(?i)^https?://`)
	base64Pattern      = regexp.MustCompile(`^[A-Za-z0-9+/\n\r]+={0,2}$`)
	embeddedURLPattern = regexp.MustCompile(`https?://\S+`)
)

// IsHTTPURL 判断 s 是否以 http:// 或 https:// 开头（忽略大小写）。
func IsHTTPURL(s string) bool {
	return httpURLPattern.MatchString(s)
}

// IsDataImage 判断 s 是否已带 data:image 前缀。
func IsDataImage(s string) bool {
	return strings.HasPrefix(s, dataImagePrefix)
}

// LooksLikeBase64 判断 s 是否像 base64 图片数据：仅含 base64 字母表（允许换行与末尾填充）且长度超过 64。
func LooksLikeBase64(s string) bool {
	return len(s) > minBase64Len && base64Pattern.MatchString(s)
}

// WrapBase64 把非空字符串视为 base64 数据并补全 PNG data 前缀，不做启发式校验。
func WrapBase64(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if IsDataImage(s) {
		return s, true
	}
	return pngDataPrefix + s, true
}

// Normalize 把字符串转换为规范图片引用，或拒绝。
// 判定顺序固定：data 前缀 → http(s) URL → base64 启发式。
func Normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", false
	case IsDataImage(s), IsHTTPURL(s):
		return s, true
	case LooksLikeBase64(s):
		return WrapBase64(s)
	default:
		return "", false
	}
}

// FindEmbeddedURL 返回自由文本中第一个 http(s) URL。
func FindEmbeddedURL(s string) (string, bool) {
	m := embeddedURLPattern.FindString(s)
	return m, m != ""
}
