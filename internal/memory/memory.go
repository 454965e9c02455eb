package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/futig/manual-assistant/internal/entity"
)

const (
	DefaultMaxHistory       = 100
	DefaultSimilarThreshold = 0.3
	maxSimilarTurns         = 3
	summaryTurns            = 3
	summaryInputLength      = 50
	noHistorySummary        = "No previous conversation history."
)

var (
	followupMarkers = []string{
		"also", "and", "what about", "how about", "additionally",
		"furthermore", "moreover", "in addition", "another question",
		"one more thing", "by the way",
	}

	followupPronouns = map[string]bool{
		"it": true, "that": true, "this": true, "them": true, "those": true, "these": true,
	}
)

type Config struct {
	MaxHistory int
	// PruneIndexes drops topic, device and issue entries whose turn has
	// been evicted from the history.
	PruneIndexes bool
	// WarrantyRepromptOnDeviceChange limits the warranty prompt lookup to
	// turns about the current device.
	WarrantyRepromptOnDeviceChange bool
}

// index is an insertion-ordered multimap of derived entries.
type index struct {
	keys    []string
	entries map[string][]entity.IndexEntry
}

func newIndex() *index {
	return &index{entries: make(map[string][]entity.IndexEntry)}
}

func (ix *index) add(key string, e entity.IndexEntry) {
	if _, ok := ix.entries[key]; !ok {
		ix.keys = append(ix.keys, key)
	}
	ix.entries[key] = append(ix.entries[key], e)
}

func (ix *index) get(key string) []entity.IndexEntry {
	return append([]entity.IndexEntry(nil), ix.entries[key]...)
}

// prune drops entries older than seq and keys left without entries.
func (ix *index) prune(seq uint64) {
	keys := ix.keys[:0]
	for _, k := range ix.keys {
		kept := ix.entries[k][:0]
		for _, e := range ix.entries[k] {
			if e.Seq >= seq {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(ix.entries, k)
			continue
		}
		ix.entries[k] = kept
		keys = append(keys, k)
	}
	ix.keys = keys
}

func (ix *index) names() []string {
	return append([]string(nil), ix.keys...)
}

// Memory is the conversation memory of one session: a bounded turn history
// plus topic, device and issue indexes derived from turn metadata.
type Memory struct {
	mu      sync.RWMutex
	cfg     Config
	turns   []entity.Turn
	seqs    []uint64
	nextSeq uint64
	topics  *index
	devices *index
	issues  *index
	now     func() time.Time
	// discarded is set once the owning session is cleared.
	discarded bool
}

func New(cfg Config) *Memory {
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	return &Memory{
		cfg:     cfg,
		topics:  newIndex(),
		devices: newIndex(),
		issues:  newIndex(),
		now:     time.Now,
	}
}

// AddTurn records a turn stamped with the current time.
func (m *Memory) AddTurn(input, response string, meta entity.TurnMetadata) entity.Turn {
	turn := entity.Turn{
		Timestamp: m.now(),
		UserInput: input,
		Response:  response,
		Metadata:  meta,
	}
	m.Append(turn)
	return turn
}

// Append records a turn as is, evicting the oldest turns beyond the
// history cap.
func (m *Memory) Append(turn entity.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.nextSeq
	m.nextSeq++
	m.turns = append(m.turns, turn)
	m.seqs = append(m.seqs, seq)

	if over := len(m.turns) - m.cfg.MaxHistory; over > 0 {
		m.turns = append([]entity.Turn(nil), m.turns[over:]...)
		m.seqs = append([]uint64(nil), m.seqs[over:]...)
		if m.cfg.PruneIndexes {
			oldest := m.seqs[0]
			m.topics.prune(oldest)
			m.devices.prune(oldest)
			m.issues.prune(oldest)
		}
	}

	meta := turn.Metadata
	entry := entity.IndexEntry{Input: turn.UserInput, Timestamp: turn.Timestamp, Seq: seq}
	if meta.QueryCategory != "" {
		m.topics.add(string(meta.QueryCategory), entry)
	}
	if meta.DeviceType != "" {
		m.devices.add(meta.DeviceType, entry)
	}
	if meta.DeviceDetails != nil {
		issueEntry := entry
		issueEntry.DeviceType = meta.DeviceType
		for _, issue := range meta.DeviceDetails.Issues {
			m.issues.add(issue, issueEntry)
		}
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// RecentTurns returns up to n most recent turns, oldest first.
func (m *Memory) RecentTurns(n int) []entity.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := max(len(m.turns)-n, 0)
	return append([]entity.Turn(nil), m.turns[start:]...)
}

func (m *Memory) AllTurns() []entity.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entity.Turn(nil), m.turns...)
}

// FindSimilarTurns returns up to three turns whose input has a word-set
// Jaccard similarity above threshold, most similar first and, on ties,
// most recent first.
func (m *Memory) FindSimilarTurns(input string, threshold float64) []entity.SimilarTurn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current := wordSet(input)
	var similar []entity.SimilarTurn
	for i := len(m.turns) - 1; i >= 0; i-- {
		sim := Jaccard(current, wordSet(m.turns[i].UserInput))
		if sim > threshold {
			similar = append(similar, entity.SimilarTurn{Turn: m.turns[i], Similarity: sim})
		}
	}
	sort.SliceStable(similar, func(a, b int) bool {
		return similar[a].Similarity > similar[b].Similarity
	})
	if len(similar) > maxSimilarTurns {
		similar = similar[:maxSimilarTurns]
	}
	return similar
}

func (m *Memory) DeviceHistory(deviceType string) []entity.IndexEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices.get(deviceType)
}

func (m *Memory) TopicHistory(topic entity.QueryCategory) []entity.IndexEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.topics.get(string(topic))
}

func (m *Memory) IssueHistory(issue string) []entity.IndexEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.issues.get(issue)
}

// Devices lists device types in the order they were first discussed.
func (m *Memory) Devices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices.names()
}

func (m *Memory) Topics() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.topics.names()
}

func (m *Memory) Issues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.issues.names()
}

// Summary is a short narrative of recent questions, devices and topics.
func (m *Memory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summaryLocked()
}

func (m *Memory) summaryLocked() string {
	if len(m.turns) == 0 {
		return noHistorySummary
	}

	parts := []string{"**Recent conversation:**"}
	start := max(len(m.turns)-summaryTurns, 0)
	for i, t := range m.turns[start:] {
		parts = append(parts, fmt.Sprintf("%d. User asked: %s...", i+1, truncateRunes(t.UserInput, summaryInputLength)))
	}
	if devices := m.devices.names(); len(devices) > 0 {
		parts = append(parts, "**Devices discussed:** "+strings.Join(devices, ", "))
	}
	if topics := m.topics.names(); len(topics) > 0 {
		parts = append(parts, "**Topics covered:** "+strings.Join(topics, ", "))
	}
	return strings.Join(parts, "\n")
}

// IsFollowup reports whether input continues earlier turns: it contains
// a follow-up marker anywhere (plain substring, so "brand" counts for
// "and"), or it has a bare pronoun and there is history.
func (m *Memory) IsFollowup(input string) bool {
	lower := strings.ToLower(input)
	for _, marker := range followupMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	tokens := words(input)

	if m.Len() == 0 {
		return false
	}
	for _, w := range tokens {
		if followupPronouns[w] {
			return true
		}
	}
	return false
}

// LatestProblemContext takes, per field, the newest non-empty value.
func (m *Memory) LatestProblemContext() entity.ProblemContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pc entity.ProblemContext
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	for i := len(m.turns) - 1; i >= 0; i-- {
		meta := m.turns[i].Metadata
		fill(&pc.DeviceType, meta.DeviceType)
		fill(&pc.Brand, meta.Brand)
		fill(&pc.Model, meta.Model)
		fill(&pc.Issue, meta.Issue)
		fill(&pc.BillNumber, meta.BillNumber)
		fill(&pc.PurchaseDate, meta.PurchaseDate)
	}
	return pc
}

// HasPromptedForWarranty reports whether any turn recorded a warranty
// prompt. With WarrantyRepromptOnDeviceChange the scan stops at the first
// turn about a device other than currentDevice.
func (m *Memory) HasPromptedForWarranty(currentDevice string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.turns) - 1; i >= 0; i-- {
		meta := m.turns[i].Metadata
		if m.cfg.WarrantyRepromptOnDeviceChange && currentDevice != "" &&
			meta.DeviceType != "" && meta.DeviceType != currentDevice {
			return false
		}
		if meta.PromptedFor == entity.PromptedForWarranty {
			return true
		}
	}
	return false
}

func (m *Memory) Stats() entity.MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return entity.MemoryStats{
		TotalTurns:       len(m.turns),
		DevicesDiscussed: m.devices.names(),
		TopicsCovered:    m.topics.names(),
		IssuesDiscussed:  m.issues.names(),
		MemorySummary:    m.summaryLocked(),
	}
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.seqs = nil
	m.topics = newIndex()
	m.devices = newIndex()
	m.issues = newIndex()
}

func (m *Memory) discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded = true
}

func (m *Memory) isDiscarded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.discarded
}

// Jaccard is |a∩b| / |a∪b|, zero for two empty sets.
func Jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// words lower-cases s and splits it on anything but letters, digits and
// apostrophes.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
