package agent

import "github.com/futig/manual-assistant/internal/entity"

type Tool string

const (
	ToolGreet               Tool = "greet"
	ToolHelp                Tool = "help"
	ToolConversationHistory Tool = "conversation_history"
	ToolClarify             Tool = "clarify"
	ToolRetrieve            Tool = "retrieve"
	ToolGenerate            Tool = "generate"
)

type Priority string

const (
	PriorityUrgent          Priority = "urgent"
	PriorityHigh            Priority = "high"
	PriorityTroubleshooting Priority = "troubleshooting"
)

// StepArgs carry the query and what is known about it to a tool.
type StepArgs struct {
	Query         string
	Confidence    float64
	DeviceType    string
	QueryCategory entity.QueryCategory
	DeviceDetails *entity.DeviceDetails
	Priority      Priority
}

type Step struct {
	Tool Tool
	Args StepArgs
}

// Planner turns the monitored state and its critique into an ordered
// step list. It sets tc.AwaitingClarification.
func (a *Agent) Planner(state entity.MonitorState, critique Critique, tc *TurnContext) []Step {
	switch {
	case state.Intent == entity.IntentGreet:
		return []Step{{Tool: ToolGreet}}
	case state.Intent == entity.IntentHelp:
		return []Step{{Tool: ToolHelp}}
	case state.Intent == entity.IntentConversationHistory:
		return []Step{{Tool: ToolConversationHistory, Args: StepArgs{Query: state.UserInput}}}
	case critique.NeedsRevision:
		tc.AwaitingClarification = true
		return []Step{{Tool: ToolClarify}}
	}

	args := StepArgs{
		Query:      state.UserInput,
		Confidence: critique.Confidence,
	}
	if state.DeviceType != "" {
		args.DeviceType = state.DeviceType
		args.QueryCategory = state.QueryCategory
		args.DeviceDetails = state.DeviceDetails
		if d := state.DeviceDetails; d != nil {
			switch d.Severity {
			case entity.SeverityUrgent:
				args.Priority = PriorityUrgent
			case entity.SeverityHigh:
				args.Priority = PriorityHigh
			}
		}
		if args.Priority == "" && state.QueryCategory == entity.CategoryTroubleshooting {
			args.Priority = PriorityTroubleshooting
		}
	}

	tc.AwaitingClarification = false
	return []Step{
		{Tool: ToolRetrieve, Args: args},
		{Tool: ToolGenerate, Args: args},
	}
}
