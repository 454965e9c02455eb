package agent

import (
	"fmt"
	"strings"

	"github.com/futig/manual-assistant/internal/entity"
)

const (
	historyListLimit      = 5
	historyRecentTurns    = 3
	historyResponsePrefix = 100
)

// HistoryReader is the part of conversation memory history answers need.
type HistoryReader interface {
	AllTurns() []entity.Turn
	RecentTurns(n int) []entity.Turn
	Devices() []string
	Topics() []string
}

// AnswerHistory answers a question about the conversation so far. The
// current input is not part of turns yet.
func AnswerHistory(input string, mem HistoryReader) string {
	turns := mem.AllTurns()
	if len(turns) == 0 {
		return "We haven't had any previous conversation yet. This is our first interaction!"
	}

	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "first"):
		return quoteTurn("Your first question was", turns[0])
	case strings.Contains(lower, "last") || strings.Contains(lower, "previous"):
		return quoteTurn("Your last question was", turns[len(turns)-1])
	case containsAny(lower, []string{"all", "history", "everything", "discussed"}):
		return listTurns(turns, mem)
	case strings.Contains(lower, "count") || strings.Contains(lower, "how many"):
		return fmt.Sprintf("You've asked %d questions in our conversation so far.", len(turns))
	}

	var sb strings.Builder
	sb.WriteString("Here are your recent questions:\n\n")
	for i, t := range mem.RecentTurns(historyRecentTurns) {
		fmt.Fprintf(&sb, "%d. \"%s\"\n", i+1, t.UserInput)
	}
	return sb.String()
}

func quoteTurn(prefix string, t entity.Turn) string {
	return fmt.Sprintf("%s: \"%s\"\n\nI responded with: %s...", prefix, t.UserInput, truncate(t.Response, historyResponsePrefix))
}

func listTurns(turns []entity.Turn, mem HistoryReader) string {
	var sb strings.Builder
	first := 1
	if len(turns) <= historyListLimit {
		sb.WriteString("Here's our complete conversation:\n\n")
	} else {
		fmt.Fprintf(&sb, "We've had %d exchanges. Here are your recent questions:\n\n", len(turns))
		first = len(turns) - historyListLimit + 1
		turns = turns[len(turns)-historyListLimit:]
	}
	for i, t := range turns {
		fmt.Fprintf(&sb, "%d. You asked: \"%s\"\n", first+i, t.UserInput)
	}

	if devices := mem.Devices(); len(devices) > 0 {
		fmt.Fprintf(&sb, "\n**Devices we've discussed:** %s\n", strings.Join(devices, ", "))
	}
	if topics := mem.Topics(); len(topics) > 0 {
		fmt.Fprintf(&sb, "**Topics covered:** %s\n", strings.Join(topics, ", "))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
