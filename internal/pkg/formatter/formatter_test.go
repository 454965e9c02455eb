package formatter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futig/manual-assistant/internal/entity"
)

func sampleTranscript() Transcript {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return Transcript{
		SessionID:  "abc",
		ExportedAt: ts,
		Turns: []entity.Turn{
			{
				Timestamp: ts,
				UserInput: "my washer is leaking",
				Response:  "Check the door seal.",
				Metadata: entity.TurnMetadata{
					DeviceType:    "washing_machine",
					QueryCategory: entity.CategoryTroubleshooting,
				},
			},
		},
	}
}

func TestFactory_Create(t *testing.T) {
	f := NewFactory()

	tests := []struct {
		format  entity.ResultFormat
		ext     string
		wantErr bool
	}{
		{entity.FormatMarkdown, ".md", false},
		{"", ".md", false},
		{entity.FormatDOCX, ".docx", false},
		{entity.FormatPDF, ".pdf", false},
		{"xlsx", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := f.Create(tt.format)
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ext, got.FileExtension())
		})
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	out, err := NewMarkdownFormatter().Format(sampleTranscript())
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "# Conversation transcript")
	assert.Contains(t, text, "## 1. 2024-05-01 10:00:00 | washing_machine | troubleshooting")
	assert.Contains(t, text, "**User:** my washer is leaking")
	assert.Contains(t, text, "**Assistant:** Check the door seal.")
}

func TestPDFFormatter_Format(t *testing.T) {
	pf := &PDFFormatter{}
	out, err := pf.Format(sampleTranscript())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
