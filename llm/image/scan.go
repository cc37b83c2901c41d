package image

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	// MaxDiagnosticTexts 是最终输出中保留的诊断文本条数上限。
	MaxDiagnosticTexts = 3
	// MaxDiagnosticTextLen 是单条诊断文本的最大字符数。
	MaxDiagnosticTextLen = 400
	// MaxScanDepth 是扫描下探的最大嵌套层数，更深的容器被忽略。
	MaxScanDepth = 64
)

// LikelyPaths 是服务商常用的图片位置，按优先级排列。
var LikelyPaths = []string{
	"choices.0.message.content",
	"choices.0.message.image_url",
	"image_url",
	"choices.0.message.tool_calls",
	"output",
	"images",
}

// 已知的 base64 字段，按优先级排列
var base64Fields = []string{"image_base64", "b64_json", "base64"}

// orderedSet 按首次出现顺序去重。
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) list(limit int) []string {
	n := len(s.items)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]string, n)
	copy(out, s.items[:n])
	return out
}

// Scanner 递归遍历半结构化响应，累积图片与诊断文本。
// 同一个 Scanner 可以多次调用 ScanLikely / ScanTree，结果共享去重。
type Scanner struct {
	images orderedSet
	texts  orderedSet
}

// NewScanner 创建空的扫描器。
func NewScanner() *Scanner {
	return &Scanner{}
}

// ScanLikely 只探测 LikelyPaths 中存在的位置。
func (s *Scanner) ScanLikely(doc gjson.Result) {
	for _, path := range LikelyPaths {
		if v := doc.Get(path); v.Exists() {
			s.Visit(v)
		}
	}
}

// ScanTree 从根开始扫描整棵树。
func (s *Scanner) ScanTree(doc gjson.Result) {
	s.Visit(doc)
}

// Visit 按值类型分派。数字、布尔与 null 被忽略。
func (s *Scanner) Visit(v gjson.Result) {
	s.visit(v, 0)
}

func (s *Scanner) visit(v gjson.Result, depth int) {
	switch {
	case v.IsObject():
		if depth < MaxScanDepth {
			s.visitObject(v, depth)
		}
	case v.IsArray():
		if depth < MaxScanDepth {
			v.ForEach(func(_, elem gjson.Result) bool {
				s.visit(elem, depth+1)
				return true
			})
		}
	case v.Type == gjson.String:
		s.visitString(v.Str)
	}
}

func (s *Scanner) visitString(str string) {
	if strings.TrimSpace(str) == "" {
		return
	}
	if ref, ok := Normalize(str); ok {
		s.addImage(ref)
		return
	}
	if u, ok := FindEmbeddedURL(str); ok {
		s.addImage(u)
		return
	}
	s.addText(str)
}

// knownFields 是对象上按优先级检查的字段
var knownFields = []string{"image_url", "url", "image", "image_base64", "b64_json", "base64", "text"}

func (s *Scanner) visitObject(obj gjson.Result, depth int) {
	// 单次遍历收集字段，重复键取首次出现
	fields := make(map[string]gjson.Result, len(knownFields))
	var children []gjson.Result
	obj.ForEach(func(key, field gjson.Result) bool {
		if _, ok := fields[key.Str]; !ok && isKnownField(key.Str) {
			fields[key.Str] = field
		}
		children = append(children, field)
		return true
	})

	imageURL := fields["image_url"]
	switch {
	case imageURL.Type == gjson.String:
		s.addImage(imageURL.Str)
	case imageURL.IsObject():
		if u := imageURL.Get("url"); u.Type == gjson.String {
			s.addImage(u.Str)
		}
	}

	if u := fields["url"]; u.Type == gjson.String {
		s.addImage(u.Str)
	}

	if img := fields["image"]; img.Type == gjson.String {
		str := strings.TrimSpace(img.Str)
		if IsDataImage(str) || IsHTTPURL(str) {
			s.addImage(str)
		} else if ref, ok := WrapBase64(str); ok {
			s.addImage(ref)
		}
	}

	for _, field := range base64Fields {
		if f := fields[field]; f.Type == gjson.String {
			if ref, ok := WrapBase64(f.Str); ok {
				s.addImage(ref)
			}
		}
	}

	if t := fields["text"]; t.Type == gjson.String {
		s.addText(t.Str)
	}

	for _, child := range children {
		s.visit(child, depth+1)
	}
}

func isKnownField(key string) bool {
	for _, f := range knownFields {
		if f == key {
			return true
		}
	}
	return false
}

func (s *Scanner) addImage(ref string) {
	if ref = strings.TrimSpace(ref); ref != "" {
		s.images.add(ref)
	}
}

func (s *Scanner) addText(text string) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxDiagnosticTextLen {
		return
	}
	s.texts.add(text)
}

// Result 返回去重后的图片与前 MaxDiagnosticTexts 条诊断文本。
func (s *Scanner) Result() ExtractedResult {
	return ExtractedResult{
		Images: s.images.list(0),
		Texts:  s.texts.list(MaxDiagnosticTexts),
	}
}

// Scan 对一个响应体先做常见位置探测再做全树扫描。
// 非法 JSON 被当作一个字符串叶子处理。
func Scan(body []byte) ExtractedResult {
	s := NewScanner()
	if !gjson.ValidBytes(body) {
		s.visitString(string(body))
		return s.Result()
	}
	doc := gjson.ParseBytes(body)
	s.ScanLikely(doc)
	s.ScanTree(doc)
	return s.Result()
}
