package image

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	b64 := strings.Repeat("QUJD", 25) // 100 chars

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "data url unchanged", input: "data:image/png;base64,AAAA", want: "data:image/png;base64,AAAA", wantOK: true},
		{name: "https url unchanged", input: "https://x/y.png", want: "https://x/y.png", wantOK: true},
		{name: "uppercase scheme", input: "HTTP://X/Y.PNG", want: "HTTP://X/Y.PNG", wantOK: true},
		{name: "trimmed", input: "  https://x/y.png\n", want: "https://x/y.png", wantOK: true},
		{name: "long base64 wrapped", input: b64, want: "data:image/png;base64," + b64, wantOK: true},
		{name: "base64 with padding", input: b64 + "==", want: "data:image/png;base64," + b64 + "==", wantOK: true},
		{name: "short alphanumeric rejected", input: "abcDEF1234", wantOK: false},
		{name: "exactly 64 chars rejected", input: strings.Repeat("A", 64), wantOK: false},
		{name: "65 chars accepted", input: strings.Repeat("A", 65), want: "data:image/png;base64," + strings.Repeat("A", 65), wantOK: true},
		{name: "empty rejected", input: "", wantOK: false},
		{name: "whitespace rejected", input: " \t\n ", wantOK: false},
		{name: "prose rejected", input: strings.Repeat("hello world ", 10), wantOK: false},
		{name: "ftp rejected", input: "ftp://x/y.png", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestWrapBase64(t *testing.T) {
	got, ok := WrapBase64("abc")
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,abc", got)

	got, ok = WrapBase64(" data:image/jpeg;base64,abc ")
	assert.True(t, ok)
	assert.Equal(t, "data:image/jpeg;base64,abc", got)

	_, ok = WrapBase64("   ")
	assert.False(t, ok)
}

func TestFindEmbeddedURL(t *testing.T) {
	u, ok := FindEmbeddedURL("here is your image: https://cdn.example/a.png enjoy")
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example/a.png", u)

	_, ok = FindEmbeddedURL("no links here")
	assert.False(t, ok)
}

// Property: a normalized reference normalizes to itself.
func TestProperty_Normalize_Idempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.OneOf(
			rapid.String(),
			rapid.StringMatching(`[A-Za-z0-9+/]{60,120}={0,2}`),
			rapid.StringMatching(`https?://[a-z]{1,10}/[a-z]{0,10}`),
		).Draw(rt, "s")

		out, ok := Normalize(s)
		if !ok {
			return
		}
		again, ok := Normalize(out)
		assert.True(rt, ok)
		assert.Equal(rt, out, again)
		assert.True(rt, IsDataImage(out) || IsHTTPURL(out))
	})
}

// Property: strings of 64 characters or fewer without a scheme or data prefix are never images.
func TestProperty_Normalize_ShortTokensRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.StringMatching(`[A-Za-z0-9]{1,64}`).Draw(rt, "s")
		_, ok := Normalize(s)
		assert.False(rt, ok)
	})
}
