package retrieval

import "strings"

// Scorer adjusts a raw L2 distance for a query and chunk text. Lower is
// better; implementations only multiply by factors below one.
type Scorer interface {
	Score(distance float32, query, text string) float32
}

const (
	exactMatchFactor   = 0.7
	perWordFactor      = 0.05
	minWordFactor      = 0.1
	longContentFactor  = 0.8
	instructionFactor  = 0.85
	detailFactor       = 0.9
	longContentLength  = 500
	minInstructionHits = 3
	minDetailHits      = 2
)

var (
	programKeywords = []string{"program", "cycle", "course", "setting", "mode", "function"}

	instructionalTerms = []string{
		"press", "select", "button", "follow", "step", "wash", "rinse",
		"spin", "temperature", "time", "recommended", "use",
	}

	detailTerms = []string{
		"gentle", "protect", "temperature", "detergent", "fabric", "care",
		"approved", "woolmark", "neutral", "horizontal", "cradling", "soaking",
	}
)

// HeuristicScorer boosts chunks that contain the whole query and chunks
// that contain several distinct query words. With program boosts enabled,
// queries about programs or settings also favour long, instructional and
// detailed chunks.
type HeuristicScorer struct {
	programBoosts bool
}

var _ Scorer = &HeuristicScorer{}

func NewMatchScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func NewProgramScorer() *HeuristicScorer {
	return &HeuristicScorer{programBoosts: true}
}

func (s *HeuristicScorer) Score(distance float32, query, text string) float32 {
	q := strings.ToLower(query)
	content := strings.ToLower(text)
	score := distance

	if q != "" && strings.Contains(content, q) {
		score *= exactMatchFactor
	}

	if matches := distinctWordMatches(q, content); matches > 1 {
		score *= float32(max(1-float64(matches)*perWordFactor, minWordFactor))
	}

	if !s.programBoosts || !containsAny(q, programKeywords) {
		return score
	}

	if len([]rune(text)) > longContentLength {
		score *= longContentFactor
	}
	if countContained(content, instructionalTerms) >= minInstructionHits {
		score *= instructionFactor
	}
	if countContained(content, detailTerms) >= minDetailHits {
		score *= detailFactor
	}
	return score
}

func distinctWordMatches(query, content string) int {
	seen := make(map[string]struct{})
	matches := 0
	for _, w := range strings.Fields(query) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		if strings.Contains(content, w) {
			matches++
		}
	}
	return matches
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func countContained(s string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(s, t) {
			n++
		}
	}
	return n
}
