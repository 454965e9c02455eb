package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitter_Split(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "short text is one chunk",
			size: 100,
			text: "hello world",
			want: []string{"hello world"},
		},
		{
			name: "words packed up to size",
			size: 10,
			text: "aaaa bbbb cccc",
			want: []string{"aaaa bbbb", "cccc"},
		},
		{
			name:    "overlap carries trailing words",
			size:    10,
			overlap: 5,
			text:    "aaaa bbbb cccc",
			want:    []string{"aaaa bbbb", "bbbb cccc"},
		},
		{
			name: "paragraph boundary preferred",
			size: 20,
			text: "first para\n\nsecond para",
			want: []string{"first para", "second para"},
		},
		{
			name: "separator stays with the following piece",
			size: 12,
			text: "One. Two. Three.",
			want: []string{"One. Two", ". Three."},
		},
		{
			name: "falls back to characters",
			size: 5,
			text: "abcdefghij",
			want: []string{"abcde", "fghij"},
		},
		{
			name: "empty text",
			size: 10,
			text: "",
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSplitter(WithChunkSize(tc.size), WithChunkOverlap(tc.overlap))
			assert.Equal(t, tc.want, s.Split(tc.text))
		})
	}
}

func TestSplitter_ChunksNeverExceedSize(t *testing.T) {
	sentence := "The drain pump filter should be cleaned every month; check the hose for kinks. "
	text := strings.Repeat(sentence, 60) + "\n\n" + strings.Repeat("Wash at 40 degrees! ", 40)

	s := NewSplitter()
	chunks := s.Split(text)

	assert.Greater(t, len(chunks), 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
		assert.NotEmpty(t, c)
	}
}

func TestSplitter_OverlapClamped(t *testing.T) {
	s := NewSplitter(WithChunkSize(100), WithChunkOverlap(100))
	assert.Equal(t, 25, s.overlap)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single newline folded", "line one\nline two", "line one line two"},
		{"paragraph kept", "para one\n\npara two", "para one\n\npara two"},
		{"crlf", "a\r\nb\r\n\r\nc", "a b\n\nc"},
		{"triple newline", "a\n\n\nb", "a\n\n b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePage(tc.in))
		})
	}
}
