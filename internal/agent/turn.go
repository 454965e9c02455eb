package agent

import (
	"strings"

	"github.com/futig/manual-assistant/internal/entity"
)

// Hints are the caller-supplied values of one request.
type Hints struct {
	Brand            string
	Model            string
	BillNumber       string
	PurchaseDate     string
	ResponseLanguage string
	RequireBrand     bool
	RequireModel     bool
}

// TurnContext is the scratch state of one turn. It merges caller hints,
// entities mentioned in the input and what memory knows about the session.
type TurnContext struct {
	Hints
	Mentioned Entities

	// IsFollowup is the memory signal: a follow-up marker, or a pronoun
	// with prior history.
	IsFollowup bool
	// ShortOrUnanchored is true for inputs under five words or inputs that
	// mention none of the known device, brand, model or issue.
	ShortOrUnanchored bool

	PreviousDevice   string
	PreviousCategory entity.QueryCategory
	RecentInputs     []string
	SimilarTurns     []entity.SimilarTurn
	DeviceHistory    []entity.IndexEntry
	Summary          string
	CurrentDevice    string
	Conversation     []entity.Turn

	// Problem holds the values known this turn, completed from memory.
	Problem entity.ProblemContext

	AwaitingClarification bool
}

// Filter is the strict retrieval filter: caller hints first, then the
// brand and model mentioned in the input, then those remembered from
// earlier turns.
func (tc *TurnContext) Filter() entity.SearchFilter {
	return entity.SearchFilter{Brand: tc.Problem.Brand, Model: tc.Problem.Model}
}

// HasBrand reports a brand from the caller, the input or memory.
func (tc *TurnContext) HasBrand() bool {
	return tc.Problem.Brand != ""
}

func (tc *TurnContext) HasModel() bool {
	return tc.Problem.Model != ""
}

func (tc *TurnContext) HasWarrantyFacts() bool {
	return tc.Problem.BillNumber != "" && tc.Problem.PurchaseDate != ""
}

// anchored reports whether lowerInput mentions any known problem keyword.
func (tc *TurnContext) anchored(lowerInput string) bool {
	keywords := []string{
		strings.ReplaceAll(tc.Problem.DeviceType, "_", " "),
		tc.Problem.Brand,
		tc.Problem.Model,
		tc.Problem.Issue,
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowerInput, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
