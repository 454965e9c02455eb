package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const encodingName = "cl100k_base"

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

var (
	encoding    *tiktoken.Tiktoken
	encodingErr error
	encOnce     sync.Once
)

func loadEncoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding(encodingName)
	})
	return encoding, encodingErr
}

// Counter counts cl100k_base tokens. When the encoding cannot be loaded it
// falls back to whitespace word counts.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func NewCounter() *Counter {
	enc, err := loadEncoding()
	if err != nil {
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Method names the counting strategy in use.
func (c *Counter) Method() string {
	if c.enc == nil {
		return "words"
	}
	return "tiktoken"
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc == nil {
		return len(strings.Fields(text))
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate returns the longest prefix of text that fits in limit tokens.
func (c *Counter) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if c.enc == nil {
		words := strings.Fields(text)
		if len(words) <= limit {
			return text
		}
		return strings.Join(words[:limit], " ")
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= limit {
		return text
	}
	return c.enc.Decode(ids[:limit])
}
