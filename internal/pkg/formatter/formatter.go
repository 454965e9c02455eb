package formatter

import (
	"fmt"
	"time"

	"github.com/futig/manual-assistant/internal/entity"
)

const baseTitle = "Conversation transcript"

// Transcript is a session's conversation prepared for export.
type Transcript struct {
	SessionID  string
	ExportedAt time.Time
	Turns      []entity.Turn
}

type Formatter interface {
	Format(t Transcript) ([]byte, error)
	ContentType() string
	FileExtension() string
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(format entity.ResultFormat) (Formatter, error) {
	switch format {
	case entity.FormatMarkdown, "":
		return NewMarkdownFormatter(), nil
	case entity.FormatDOCX:
		return NewDOCXFormatter(), nil
	case entity.FormatPDF:
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, format)
	}
}

func header(t Transcript) string {
	return fmt.Sprintf("Session %s, exported %s, %d exchanges",
		t.SessionID, t.ExportedAt.UTC().Format(time.RFC3339), len(t.Turns))
}

func turnMeta(turn entity.Turn) string {
	meta := turn.Timestamp.UTC().Format("2006-01-02 15:04:05")
	if turn.Metadata.DeviceType != "" {
		meta += " | " + turn.Metadata.DeviceType
	}
	if turn.Metadata.QueryCategory != "" {
		meta += " | " + string(turn.Metadata.QueryCategory)
	}
	return meta
}
