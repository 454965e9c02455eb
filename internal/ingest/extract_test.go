package ingest

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futig/manual-assistant/internal/entity"
)

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	m.args = args
	return m.output, m.err
}

// executable returns a path LookPath accepts, so the runner is reached.
func executable(t *testing.T) string {
	t.Helper()
	path, err := os.Executable()
	require.NoError(t, err)
	return path
}

func TestExtractor_Pages(t *testing.T) {
	ctx := context.Background()

	t.Run("text split on form feed", func(t *testing.T) {
		e := NewExtractor("")
		pages, err := e.Pages(ctx, "manual.txt", []byte("page one\fpage two\f"))
		require.NoError(t, err)
		assert.Equal(t, []entity.Page{
			{Number: 1, Text: "page one"},
			{Number: 2, Text: "page two"},
		}, pages)
	})

	t.Run("markdown without form feed is one page", func(t *testing.T) {
		pages, err := NewExtractor("").Pages(ctx, "README.MD", []byte("# Setup\n\nPlug it in."))
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, 1, pages[0].Number)
	})

	t.Run("blank document", func(t *testing.T) {
		_, err := NewExtractor("").Pages(ctx, "manual.txt", []byte(" \f \n"))
		assert.ErrorIs(t, err, entity.ErrEmptyDocument)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := NewExtractor("").Pages(ctx, "manual.exe", []byte("x"))
		assert.ErrorIs(t, err, entity.ErrInvalidExtension)
	})

	t.Run("pdf through pdftotext", func(t *testing.T) {
		runner := &mockRunner{output: []byte("Safety\f\fCleaning the filter\f")}
		e := NewExtractorWithRunner(executable(t), runner)

		pages, err := e.Pages(ctx, "manual.pdf", []byte("%PDF-1.4 fake"))
		require.NoError(t, err)
		require.Len(t, pages, 3)
		assert.Equal(t, "Safety", pages[0].Text)
		assert.Equal(t, "", pages[1].Text)
		assert.Equal(t, 3, pages[2].Number)
		assert.Equal(t, "-", runner.args[len(runner.args)-1])
	})

	t.Run("pdftotext failure", func(t *testing.T) {
		runner := &mockRunner{err: errors.New("crashed")}
		_, err := NewExtractorWithRunner(executable(t), runner).Pages(ctx, "manual.pdf", []byte("%PDF"))
		assert.ErrorIs(t, err, entity.ErrInvalidFile)
		assert.Contains(t, err.Error(), "pdftotext failed")
	})

	t.Run("pdftotext missing", func(t *testing.T) {
		_, err := NewExtractorWithRunner("/nonexistent/pdftotext", &mockRunner{}).Pages(ctx, "manual.pdf", []byte("%PDF"))
		assert.ErrorIs(t, err, ErrPDFToolNotFound)
	})
}
