package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futig/manual-assistant/internal/entity"
)

func newTestMemory(cfg Config) *Memory {
	m := New(cfg)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return m
}

func deviceTurn(device string, category entity.QueryCategory, issues ...string) entity.TurnMetadata {
	return entity.TurnMetadata{
		DeviceType:    device,
		QueryCategory: category,
		DeviceDetails: &entity.DeviceDetails{Issues: issues},
	}
}

func TestMemory_AddTurn(t *testing.T) {
	m := newTestMemory(Config{MaxHistory: 3})
	for i := 1; i <= 5; i++ {
		m.AddTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), deviceTurn("dishwasher", entity.CategoryTroubleshooting, "not draining"))
	}

	turns := m.AllTurns()
	require.Len(t, turns, 3)
	assert.Equal(t, "q3", turns[0].UserInput)
	assert.Equal(t, "q5", turns[2].UserInput)
	assert.True(t, turns[1].Timestamp.Before(turns[2].Timestamp))

	recent := m.RecentTurns(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "q4", recent[0].UserInput)
	assert.Empty(t, m.RecentTurns(0))

	t.Run("indexes keep evicted entries by default", func(t *testing.T) {
		assert.Len(t, m.DeviceHistory("dishwasher"), 5)
		assert.Len(t, m.TopicHistory(entity.CategoryTroubleshooting), 5)
		issues := m.IssueHistory("not draining")
		require.Len(t, issues, 5)
		assert.Equal(t, "dishwasher", issues[0].DeviceType)
	})

	t.Run("indexes pruned when configured", func(t *testing.T) {
		pruned := newTestMemory(Config{MaxHistory: 2, PruneIndexes: true})
		pruned.AddTurn("washer leaks", "", deviceTurn("washing_machine", entity.CategoryTroubleshooting, "leaking"))
		pruned.AddTurn("fridge warm", "", deviceTurn("refrigerator", entity.CategoryTroubleshooting))
		pruned.AddTurn("fridge noise", "", deviceTurn("refrigerator", entity.CategoryGeneral))

		assert.Empty(t, pruned.DeviceHistory("washing_machine"))
		assert.Equal(t, []string{"refrigerator"}, pruned.Devices())
		assert.Equal(t, []string{"troubleshooting", "general"}, pruned.Topics())
		assert.Empty(t, pruned.Issues())
		assert.Len(t, pruned.TopicHistory(entity.CategoryTroubleshooting), 1)
	})
}

func TestMemory_FindSimilarTurns(t *testing.T) {
	m := newTestMemory(Config{})
	m.AddTurn("how do I clean the filter", "", entity.TurnMetadata{})
	m.AddTurn("how do I clean the drum", "", entity.TurnMetadata{})
	m.AddTurn("how do I clean the door", "", entity.TurnMetadata{})
	m.AddTurn("how do I clean the seal", "", entity.TurnMetadata{})
	m.AddTurn("warranty status please", "", entity.TurnMetadata{})

	similar := m.FindSimilarTurns("How do I clean the hose", DefaultSimilarThreshold)

	require.Len(t, similar, 3)
	// Equal similarity, so the most recent come first.
	assert.Equal(t, "how do I clean the seal", similar[0].Turn.UserInput)
	assert.Equal(t, "how do I clean the door", similar[1].Turn.UserInput)
	assert.Equal(t, "how do I clean the drum", similar[2].Turn.UserInput)
	assert.InDelta(t, 5.0/7.0, similar[0].Similarity, 1e-9)

	t.Run("sorted by similarity", func(t *testing.T) {
		similar := m.FindSimilarTurns("how do I clean the filter", 0.3)
		require.NotEmpty(t, similar)
		assert.Equal(t, "how do I clean the filter", similar[0].Turn.UserInput)
		assert.InDelta(t, 1.0, similar[0].Similarity, 1e-9)
		for i := 1; i < len(similar); i++ {
			assert.GreaterOrEqual(t, similar[i-1].Similarity, similar[i].Similarity)
		}
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		assert.Empty(t, m.FindSimilarTurns("warranty", 1.0/3.0))
	})
}

func TestJaccard_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"washer is leaking", "the washer is not leaking"},
		{"", "anything"},
		{"same words", "words same"},
	}
	for _, p := range pairs {
		a, b := wordSet(p[0]), wordSet(p[1])
		assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
	}
	assert.Equal(t, 0.0, Jaccard(wordSet(""), wordSet("")))
	assert.Equal(t, 1.0, Jaccard(wordSet("same words"), wordSet("WORDS same")))
}

func TestMemory_IsFollowup(t *testing.T) {
	empty := newTestMemory(Config{})
	withHistory := newTestMemory(Config{})
	withHistory.AddTurn("my washer is leaking", "", entity.TurnMetadata{})

	tests := []struct {
		name  string
		mem   *Memory
		input string
		want  bool
	}{
		{"marker without history", empty, "What about the dryer?", true},
		{"multi word marker", empty, "one more thing, the door", true},
		{"pronoun without history", empty, "fix that", false},
		{"pronoun with history", withHistory, "fix that", true},
		{"pronoun with punctuation", withHistory, "Is it safe?", true},
		{"marker inside a word", empty, "brand new washer", true},
		{"marker inside another word", empty, "I can't understand the panel", true},
		{"plain question", withHistory, "how to descale a kettle", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.mem.IsFollowup(tc.input))
		})
	}
}

func TestMemory_LatestProblemContext(t *testing.T) {
	m := newTestMemory(Config{})
	assert.Equal(t, entity.ProblemContext{}, m.LatestProblemContext())

	m.AddTurn("t1", "", entity.TurnMetadata{DeviceType: "refrigerator", Brand: "Cool", BillNumber: "B-1"})
	m.AddTurn("t2", "", entity.TurnMetadata{DeviceType: "washing_machine", Issue: "leaking"})
	m.AddTurn("t3", "", entity.TurnMetadata{PurchaseDate: "2024-01-10"})

	assert.Equal(t, entity.ProblemContext{
		DeviceType:   "washing_machine",
		Brand:        "Cool",
		Issue:        "leaking",
		BillNumber:   "B-1",
		PurchaseDate: "2024-01-10",
	}, m.LatestProblemContext())
}

func TestMemory_HasPromptedForWarranty(t *testing.T) {
	build := func(cfg Config) *Memory {
		m := newTestMemory(cfg)
		m.AddTurn("washer leaks", "prompt", entity.TurnMetadata{DeviceType: "washing_machine", PromptedFor: entity.PromptedForWarranty})
		m.AddTurn("and the drum?", "answer", entity.TurnMetadata{DeviceType: "washing_machine"})
		m.AddTurn("fridge is warm", "answer", entity.TurnMetadata{DeviceType: "refrigerator"})
		return m
	}

	t.Run("no reset by default", func(t *testing.T) {
		m := build(Config{})
		assert.True(t, m.HasPromptedForWarranty("refrigerator"))
	})

	t.Run("reset on device change", func(t *testing.T) {
		m := build(Config{WarrantyRepromptOnDeviceChange: true})
		assert.False(t, m.HasPromptedForWarranty("refrigerator"))
		assert.False(t, m.HasPromptedForWarranty("washing_machine"))
	})

	t.Run("same device still prompted", func(t *testing.T) {
		m := newTestMemory(Config{WarrantyRepromptOnDeviceChange: true})
		m.AddTurn("washer leaks", "prompt", entity.TurnMetadata{DeviceType: "washing_machine", PromptedFor: entity.PromptedForWarranty})
		m.AddTurn("thanks", "answer", entity.TurnMetadata{})
		assert.True(t, m.HasPromptedForWarranty("washing_machine"))
	})

	t.Run("never prompted", func(t *testing.T) {
		assert.False(t, newTestMemory(Config{}).HasPromptedForWarranty(""))
	})
}

func TestMemory_SummaryAndStats(t *testing.T) {
	m := newTestMemory(Config{})
	assert.Equal(t, noHistorySummary, m.Summary())

	m.AddTurn("my washing machine is beeping and will not drain the water at all", "", deviceTurn("washing_machine", entity.CategoryTroubleshooting, "beeping"))
	m.AddTurn("how to clean the filter", "", deviceTurn("washing_machine", entity.CategoryMaintenance))

	want := "**Recent conversation:**\n" +
		"1. User asked: my washing machine is beeping and will not drain t...\n" +
		"2. User asked: how to clean the filter...\n" +
		"**Devices discussed:** washing_machine\n" +
		"**Topics covered:** troubleshooting, maintenance"
	assert.Equal(t, want, m.Summary())

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalTurns)
	assert.Equal(t, []string{"washing_machine"}, stats.DevicesDiscussed)
	assert.Equal(t, []string{"beeping"}, stats.IssuesDiscussed)
	assert.Equal(t, want, stats.MemorySummary)

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Devices())
	assert.Equal(t, noHistorySummary, m.Summary())
}
