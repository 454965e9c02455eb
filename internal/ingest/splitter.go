package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraph, line, sentence ends,
// clause marks, space, then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ";", ":", " ", ""}

// Splitter cuts text into chunks of at most size characters, preferring the
// earliest separator that occurs in the text and recursing with the rest
// on pieces that are still too long. Separators stay attached to the start
// of the piece that follows them. Consecutive chunks share up to overlap
// characters.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

type SplitterOption func(*Splitter)

func WithChunkSize(size int) SplitterOption {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

func WithChunkOverlap(overlap int) SplitterOption {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

func WithSeparators(separators ...string) SplitterOption {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = separators
		}
	}
}

func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}
	return s
}

func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge packs pieces into chunks up to size, carrying up to overlap
// characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.size && len(current) > 0 {
			if chunk := joinChunk(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if chunk := joinChunk(current); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func joinChunk(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

// splitKeepingSeparator splits text so that every piece after the first
// begins with separator. An empty separator splits into characters.
func splitKeepingSeparator(text, separator string) []string {
	var pieces []string
	if separator == "" {
		pieces = make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, separator)
	pieces = appendNonEmpty(pieces, parts[0])
	for _, part := range parts[1:] {
		pieces = append(pieces, separator+part)
	}
	return pieces
}

func appendNonEmpty(pieces []string, s string) []string {
	if s == "" {
		return pieces
	}
	return append(pieces, s)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
