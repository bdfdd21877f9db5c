package strings

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateDescription(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short text unchanged", input: "file not found", maxLen: 20, want: "file not found"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, want: "hello"},
		{name: "long text cut", input: "permission denied while opening /etc/shadow", maxLen: 20, want: "permission denied..."},
		{name: "newlines and tabs collapsed", input: "line one\r\n\tline two", maxLen: 40, want: "line one line two"},
		{name: "surrounding whitespace trimmed", input: "  error  ", maxLen: 20, want: "error"},
		{name: "whitespace only", input: " \n\t ", maxLen: 10, want: ""},
		{name: "multibyte text cut on runes", input: "日本語テスト文字列", maxLen: 6, want: "日本語..."},
		{name: "small maxLen clamped", input: "hello", maxLen: 2, want: "h..."},
		{name: "negative maxLen clamped", input: "hello", maxLen: -5, want: "h..."},
		{name: "short text with small maxLen", input: "hi", maxLen: 3, want: "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateDescription(tt.input, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tt.maxLen, MinTruncateLen))
		})
	}
}
