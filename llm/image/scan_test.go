package image

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"pgregory.net/rapid"
)

func TestScan_ChatContentImageURL(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":[{"image_url":{"url":"https://cdn/x.png"}}]}}]}`)

	got := Scan(body)
	assert.Equal(t, []string{"https://cdn/x.png"}, got.Images)
	assert.Empty(t, got.Texts)
	assert.NotNil(t, got.Texts)
}

func TestScan_DeduplicatesAcrossPasses(t *testing.T) {
	body := []byte(`{
		"images": ["https://cdn/a.png"],
		"data": {"nested": {"url": "https://cdn/a.png"}},
		"output": [{"image_url": "https://cdn/a.png"}, {"url": "https://cdn/b.png"}]
	}`)

	got := Scan(body)
	assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/b.png"}, got.Images)
}

func TestScan_LikelyLocationsComeFirst(t *testing.T) {
	body := []byte(`{"meta":{"url":"https://cdn/tree.png"},"images":["https://cdn/likely.png"]}`)

	got := Scan(body)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "https://cdn/likely.png", got.Images[0])
	assert.Equal(t, "https://cdn/tree.png", got.Images[1])
}

func TestScan_CapsDiagnosticTexts(t *testing.T) {
	fields := make([]string, 10)
	for i := range fields {
		fields[i] = fmt.Sprintf(`"f%d":"note number %d"`, i, i)
	}
	body := []byte("{" + strings.Join(fields, ",") + "}")

	got := Scan(body)
	assert.Empty(t, got.Images)
	assert.Equal(t, []string{"note number 0", "note number 1", "note number 2"}, got.Texts)
}

func TestScan_KnownFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "image_url string", body: `{"image_url":"https://a/1.png"}`, want: []string{"https://a/1.png"}},
		{name: "image data url", body: `{"image":"data:image/webp;base64,QQ=="}`, want: []string{"data:image/webp;base64,QQ=="}},
		{name: "image short base64 wrapped", body: `{"image":"QUJD"}`, want: []string{"data:image/png;base64,QUJD"}},
		{name: "image_base64", body: `{"image_base64":"QUJD"}`, want: []string{"data:image/png;base64,QUJD"}},
		{name: "b64_json", body: `{"data":[{"b64_json":"QUJD"}]}`, want: []string{"data:image/png;base64,QUJD"}},
		{name: "base64", body: `{"base64":"data:image/jpeg;base64,QUJD"}`, want: []string{"data:image/jpeg;base64,QUJD"}},
		{name: "embedded url in text", body: `{"choices":[{"message":{"content":"Done! See https://cdn/out.png"}}]}`, want: []string{"https://cdn/out.png"}},
		{name: "tool calls", body: `{"choices":[{"message":{"tool_calls":[{"function":{"arguments":{"url":"https://cdn/t.png"}}}]}}]}`, want: []string{"https://cdn/t.png"}},
		{name: "numbers and bools ignored", body: `{"n":1,"ok":true,"x":null}`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan([]byte(tt.body))
			assert.Equal(t, tt.want, got.Images)
		})
	}
}

func TestScan_TextFields(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", MaxDiagnosticTextLen/4))
	body := []byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"I cannot edit images."}]}}],"long":"` + long + `"}`)

	got := Scan(body)
	assert.Empty(t, got.Images)
	assert.Contains(t, got.Texts, "I cannot edit images.")
	assert.NotContains(t, got.Texts, long)
	assert.LessOrEqual(t, len(got.Texts), MaxDiagnosticTexts)
}

func TestScan_InvalidJSON(t *testing.T) {
	got := Scan([]byte("oops https://cdn/raw.png"))
	assert.Equal(t, []string{"https://cdn/raw.png"}, got.Images)
}

func nestObjects(depth int, leaf string) []byte {
	return []byte(strings.Repeat(`{"a":`, depth) + leaf + strings.Repeat("}", depth))
}

func TestScan_DepthLimit(t *testing.T) {
	leaf := `{"url":"https://cdn/deep.png"}`

	got := Scan(nestObjects(MaxScanDepth-1, leaf))
	assert.Equal(t, []string{"https://cdn/deep.png"}, got.Images)

	got = Scan(nestObjects(MaxScanDepth, leaf))
	assert.Empty(t, got.Images)

	arrays := []byte(strings.Repeat("[", MaxScanDepth+1) + `"https://cdn/arr.png"` + strings.Repeat("]", MaxScanDepth+1))
	assert.Empty(t, Scan(arrays).Images)
}

func TestScan_DeeplyNestedBodyIsBounded(t *testing.T) {
	body := nestObjects(40000, `"x"`)

	start := time.Now()
	got := Scan(body)
	elapsed := time.Since(start)

	assert.Empty(t, got.Images)
	assert.Less(t, elapsed, 5*time.Second, "scan of %d-byte nested body took %s", len(body), elapsed)
}

func TestScanner_PassesAreIndependent(t *testing.T) {
	doc := gjson.Parse(`{"images":["https://cdn/likely.png"],"other":{"url":"https://cdn/deep.png"}}`)

	likely := NewScanner()
	likely.ScanLikely(doc)
	assert.Equal(t, []string{"https://cdn/likely.png"}, likely.Result().Images)

	tree := NewScanner()
	tree.ScanTree(doc)
	assert.ElementsMatch(t, []string{"https://cdn/likely.png", "https://cdn/deep.png"}, tree.Result().Images)
}

// Property: scan output never contains duplicates and never exceeds the diagnostic cap.
func TestProperty_Scan_DedupAndCap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		leaves := rapid.SliceOfN(rapid.OneOf(
			rapid.SampledFrom([]string{"https://cdn/a.png", "https://cdn/b.png", "data:image/png;base64,AA"}),
			rapid.StringMatching(`[a-z ]{1,20}`),
		), 0, 30).Draw(rt, "leaves")

		parts := make([]string, len(leaves))
		for i, l := range leaves {
			parts[i] = fmt.Sprintf(`{"k%d":%q}`, i, l)
		}
		body := []byte(`{"output":[` + strings.Join(parts, ",") + `]}`)

		got := Scan(body)
		assert.LessOrEqual(rt, len(got.Texts), MaxDiagnosticTexts)
		seen := map[string]bool{}
		for _, img := range got.Images {
			assert.False(rt, seen[img], "duplicate image %s", img)
			seen[img] = true
		}
		seenText := map[string]bool{}
		for _, txt := range got.Texts {
			assert.False(rt, seenText[txt], "duplicate text %s", txt)
			seenText[txt] = true
		}
	})
}
