package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/futig/manual-assistant/internal/entity"
)

// MaxMessageLength is the Telegram limit for a single text message.
const MaxMessageLength = 4096

const (
	MsgWelcome = `👋 Hi! I answer questions about your home appliances using their manuals.

Ask me things like:
• How do I descale my coffee machine?
• My washing machine shows error E21
• Is my fridge still under warranty?

Use /help to see all commands.`

	MsgHelp = `🤖 Commands:

/start - Show the welcome message
/help - Show this help
/brand <name> - Prefer manuals of this brand
/model <name> - Prefer manuals of this model
/language <code> - Reply in this language (e.g. en, de, es)
/settings - Show current preferences
/history - List your recent questions
/summary - Summarize this conversation
/export - Download the conversation
/reset - Forget this conversation`

	MsgResetConfirm = `⚠️ Forget the whole conversation? Preferences are kept.`
	MsgResetDone    = `🧹 Conversation cleared. Ask me anything.`
	MsgResetKept    = `👌 Conversation kept.`
	MsgNoHistory    = `📭 No questions yet. Ask me something about your appliance.`
	MsgChooseFormat = `📄 Choose the export format:`
	MsgPrefSaved    = `✅ %s set to %q.`
	MsgPrefCleared  = `✅ %s cleared.`
	MsgSettings     = "⚙️ Preferences\n\nBrand: %s\nModel: %s\nLanguage: %s"
	MsgUnsupported  = `🙈 I can only read text messages.`
	MsgUnknownCmd   = `❓ Unknown command. Use /help`

	ErrGeneric            = `❌ Something went wrong. Please try again.`
	ErrNetworkIssue       = `❌ Connection problem. Please try again later.`
	ErrServiceUnavailable = `❌ The service is temporarily unavailable. Please try again in a few minutes.`
	ErrTimeout            = `❌ That took too long. Please try again.`
	ErrQuotaExceeded      = `❌ Too many requests. Please wait a bit.`
	ErrInvalidInput       = `❌ I could not understand that. Please rephrase.`
	ErrNoConversation     = `📭 There is no conversation yet. Ask me a question first.`
	ErrKnowledgeBase      = `❌ The manual library is unavailable right now. Please try again later.`
)

// Answer formats an agent response with its manual sources.
func Answer(resp *entity.ChatResponse) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(resp.Response))

	if len(resp.Sources) > 0 && !resp.AwaitingClarification {
		sb.WriteString("\n\n📚 Sources:")
		for _, s := range resp.Sources {
			sb.WriteString("\n• ")
			sb.WriteString(sourceLabel(s))
		}
	}

	return sb.String()
}

func sourceLabel(s entity.Source) string {
	name := strings.TrimSpace(s.Brand + " " + s.Model)
	if name == "" {
		name = s.Filename
	}
	if s.Page > 0 {
		return fmt.Sprintf("%s, page %d", name, s.Page)
	}
	return name
}

// History lists the user inputs of the given turns, oldest first.
func History(history *entity.SessionHistory) string {
	if history == nil || len(history.Turns) == 0 {
		return MsgNoHistory
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕘 Your last %d of %d questions:\n", len(history.Turns), history.Total)
	for i, t := range history.Turns {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, t.UserInput)
	}
	return sb.String()
}

// Summary formats a conversation summary.
func Summary(resp *entity.SummarizeResponse) string {
	text := "📝 Summary\n\n" + strings.TrimSpace(resp.Summary)
	if resp.Note != "" {
		text += "\n\n" + resp.Note
	}
	return text
}

// Settings formats stored chat preferences.
func Settings(brand, model, language string) string {
	return fmt.Sprintf(MsgSettings, orUnset(brand), orUnset(model), orUnset(language))
}

func orUnset(v string) string {
	if v == "" {
		return "not set"
	}
	return v
}

// Split breaks text into chunks that fit one Telegram message, preferring
// paragraph and line boundaries.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}

	var parts []string
	rest := []rune(text)
	for len(rest) > limit {
		cut := lastBreak(rest[:limit])
		if cut <= 0 {
			cut = limit
		}
		if part := strings.TrimSpace(string(rest[:cut])); part != "" {
			parts = append(parts, part)
		}
		rest = rest[cut:]
	}
	if part := strings.TrimSpace(string(rest)); part != "" || len(parts) == 0 {
		parts = append(parts, part)
	}
	return parts
}

func lastBreak(r []rune) int {
	s := string(r)
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(s, sep); i > 0 {
			return len([]rune(s[:i])) + len([]rune(sep))
		}
	}
	return -1
}

// ClassifyError analyzes an error and returns an appropriate user-friendly message
func ClassifyError(err error) string {
	if err == nil {
		return ErrGeneric
	}

	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		return ErrNoConversation
	case errors.Is(err, entity.ErrIndexUnavailable):
		return ErrKnowledgeBase
	case errors.Is(err, entity.ErrMissingField),
		errors.Is(err, entity.ErrInvalidParameter),
		errors.Is(err, entity.ErrInvalidFormat):
		return ErrInvalidInput
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return ErrServiceUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetworkIssue
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "connection refused"), strings.Contains(errMsg, "unavailable"):
		return ErrServiceUnavailable
	case strings.Contains(errMsg, "timeout"):
		return ErrTimeout
	case strings.Contains(errMsg, "quota"), strings.Contains(errMsg, "rate limit"):
		return ErrQuotaExceeded
	}

	return ErrGeneric
}
