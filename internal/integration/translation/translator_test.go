package translation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type upperBackend struct {
	calls int
	err   error
}

func (b *upperBackend) Translate(_ context.Context, text, source, target string) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return source + ">" + target + ":" + text, nil
}

func TestTranslator(t *testing.T) {
	ctx := context.Background()

	t.Run("english input is not sent", func(t *testing.T) {
		b := &upperBackend{}
		tr := NewTranslator(b)
		assert.Equal(t, "hello", tr.ToEnglish(ctx, "hello", "en"))
		assert.Equal(t, "hello", tr.FromEnglish(ctx, "hello", ""))
		assert.Zero(t, b.calls)
	})

	t.Run("round trip", func(t *testing.T) {
		tr := NewTranslator(&upperBackend{})
		assert.Equal(t, "es>en:hola", tr.ToEnglish(ctx, "hola", "es"))
		assert.Equal(t, "en>pl:hi", tr.FromEnglish(ctx, "hi", "pl"))
	})

	t.Run("failure keeps original", func(t *testing.T) {
		tr := NewTranslator(&upperBackend{err: errors.New("down")})
		assert.Equal(t, "hola", tr.ToEnglish(ctx, "hola", "es"))
	})

	t.Run("nil translator is passthrough", func(t *testing.T) {
		var tr *Translator
		assert.Equal(t, "hola", tr.ToEnglish(ctx, "hola", "es"))
	})
}
