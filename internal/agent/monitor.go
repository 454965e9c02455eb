package agent

import (
	"regexp"
	"strings"

	"github.com/futig/manual-assistant/internal/entity"
)

var (
	historyKeywords = []string{
		"first question", "last question", "previous question", "earlier question",
		"what did i ask", "what was my question", "conversation history",
		"chat history", "our conversation", "before", "previously",
		"what did we discuss", "what have we talked about", "earlier conversation",
		"my questions", "questions i asked", "what have i asked",
	}

	greetingRe = regexp.MustCompile(`(?i)\b(?:hello|hi|hey|greetings)\b`)

	helpPhrases = []string{"what can you do", "what can you help with", "how can you help"}
)

// IsHistoryQuery reports a question about the conversation itself.
func IsHistoryQuery(input string) bool {
	return containsAny(strings.ToLower(input), historyKeywords)
}

// Monitor classifies the intent of input. Intents are checked in priority
// order: conversation history, greeting, help, then anything else is a
// device query, which also runs device detection.
func (a *Agent) Monitor(input string, hints Hints) entity.MonitorState {
	state := entity.MonitorState{
		MissingInfo: []string{},
		UserInput:   input,
	}

	if IsHistoryQuery(input) {
		state.Intent = entity.IntentConversationHistory
		state.QueryCategory = entity.CategoryConversationHistory
		return state
	}

	lower := strings.ToLower(input)
	switch {
	case greetingRe.MatchString(lower):
		state.Intent = entity.IntentGreet
	case containsAny(lower, helpPhrases):
		state.Intent = entity.IntentHelp
	default:
		state.Intent = entity.IntentQuery
	}

	if hints.RequireBrand && hints.Brand == "" {
		state.MissingInfo = append(state.MissingInfo, "brand")
	}
	if hints.RequireModel && hints.Model == "" {
		state.MissingInfo = append(state.MissingInfo, "model")
	}

	if state.Intent == entity.IntentQuery {
		det := a.detector.Detect(input)
		state.DeviceType = det.DeviceType
		state.QueryCategory = det.Category
		state.DeviceDetails = det.Details
	}
	return state
}
