package agent

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/futig/manual-assistant/internal/entity"
)

const (
	minConfidence        = 0.3
	vaguePenalty         = 0.3
	maxVagueWords        = 3
	urgentCritiqueSuffix = " - Urgent issue, proceeding"
)

var vagueWords = map[string]bool{
	"it": true, "this": true, "that": true, "stuff": true, "thing": true, "something": true,
}

// Critique is the Critic's verdict on a monitored input.
type Critique struct {
	Message       string
	NeedsRevision bool
	Confidence    float64
}

// Critic scores how well the input was understood. Non-query intents are
// always fully confident; query confidence adds up independent signals.
func (a *Agent) Critic(state entity.MonitorState, tc *TurnContext) Critique {
	if state.Intent != entity.IntentQuery {
		return Critique{Message: fmt.Sprintf("Clear %s intent", state.Intent), Confidence: 1}
	}

	var c Critique
	if state.DeviceType != "" {
		c.Confidence += 0.4
		c.Message = "Device detected: " + state.DeviceType
		if state.QueryCategory != "" {
			c.Confidence += 0.3
			c.Message += ", Category: " + string(state.QueryCategory)
		}
	} else {
		c.Confidence += 0.1
		c.Message = "Generic device query"
	}

	details := state.DeviceDetails
	if details != nil {
		if len(details.Issues) > 0 {
			c.Confidence += 0.2
		}
		if len(details.Components) > 0 {
			c.Confidence += 0.1
		}
		if len(details.ErrorCodes) > 0 {
			c.Confidence += 0.3
		}
	}

	if tc.HasBrand() {
		c.Confidence += 0.1
	}
	if tc.HasModel() {
		c.Confidence += 0.1
	}
	if len(tc.Mentioned.ErrorCodes) > 0 {
		c.Confidence += 0.2
	}
	if tc.IsFollowup {
		c.Confidence += 0.2
	}
	if len(tc.SimilarTurns) > 0 {
		c.Confidence += 0.1
	}

	if isVague(state.UserInput) && !tc.IsFollowup {
		c.Confidence *= vaguePenalty
		c.NeedsRevision = true
		c.Message = "Query too vague without context"
	}

	severity := entity.SeverityNormal
	if details != nil && details.Severity != "" {
		severity = details.Severity
	}
	if (severity == entity.SeverityUrgent || severity == entity.SeverityHigh) && c.Confidence >= minConfidence {
		c.NeedsRevision = false
		c.Message += urgentCritiqueSuffix
	}

	if c.Confidence < minConfidence && !c.NeedsRevision {
		c.NeedsRevision = true
		c.Message = "Low confidence in query understanding"
	}
	return c
}

// isVague reports a short input made up around a placeholder word.
func isVague(input string) bool {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) > maxVagueWords {
		return false
	}
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if vagueWords[w] {
			return true
		}
	}
	return false
}
