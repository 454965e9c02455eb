package keyboard

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/futig/manual-assistant/internal/entity"
)

// Builder creates inline keyboards
type Builder struct{}

// NewBuilder creates a keyboard builder
func NewBuilder() *Builder {
	return &Builder{}
}

// ExportKeyboard offers the transcript formats.
func (b *Builder) ExportKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Markdown", EncodeCallback(ActionExport, string(entity.FormatMarkdown))),
			tgbotapi.NewInlineKeyboardButtonData("📄 DOCX", EncodeCallback(ActionExport, string(entity.FormatDOCX))),
			tgbotapi.NewInlineKeyboardButtonData("📕 PDF", EncodeCallback(ActionExport, string(entity.FormatPDF))),
		),
	)
}

// ResetKeyboard asks to confirm forgetting the conversation.
func (b *Builder) ResetKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes, forget it", EncodeCallback(ActionReset, ResetConfirm)),
			tgbotapi.NewInlineKeyboardButtonData("❌ No, keep it", EncodeCallback(ActionReset, ResetKeep)),
		),
	)
}
