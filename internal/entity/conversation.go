package entity

import "time"

type QueryCategory string

const (
	CategoryTroubleshooting     QueryCategory = "troubleshooting"
	CategoryMaintenance         QueryCategory = "maintenance"
	CategoryUsage               QueryCategory = "usage"
	CategoryGeneral             QueryCategory = "general"
	CategoryConversationHistory QueryCategory = "conversation_history"
)

type Severity string

const (
	SeverityUrgent Severity = "urgent"
	SeverityHigh   Severity = "high"
	SeverityNormal Severity = "normal"
)

// DeviceDetails holds the term matches behind a device classification.
type DeviceDetails struct {
	Issues          []string `json:"issues,omitempty"`
	MaintenanceType []string `json:"maintenance_type,omitempty"`
	UsageType       []string `json:"usage_type,omitempty"`
	Components      []string `json:"components"`
	ErrorCodes      []string `json:"error_codes,omitempty"`
	Severity        Severity `json:"severity,omitempty"`
}

const PromptedForWarranty = "warranty"

// TurnMetadata is the snapshot recorded with a turn.
type TurnMetadata struct {
	DeviceType    string         `json:"device_type,omitempty"`
	QueryCategory QueryCategory  `json:"query_category,omitempty"`
	DeviceDetails *DeviceDetails `json:"device_details,omitempty"`
	Confidence    float64        `json:"confidence"`
	IsFollowup    bool           `json:"is_followup"`
	Brand         string         `json:"brand,omitempty"`
	Model         string         `json:"model,omitempty"`
	Issue         string         `json:"issue,omitempty"`
	BillNumber    string         `json:"bill_number,omitempty"`
	PurchaseDate  string         `json:"purchase_date,omitempty"`
	PromptedFor   string         `json:"prompted_for,omitempty"`
	Agent         string         `json:"agent,omitempty"`
	LastPrompt    string         `json:"last_prompt,omitempty"`
}

// Turn is one user input / system response exchange.
type Turn struct {
	Timestamp time.Time    `json:"timestamp"`
	UserInput string       `json:"user_input"`
	Response  string       `json:"response"`
	Metadata  TurnMetadata `json:"metadata"`
}

// IndexEntry is a derived memory index record (topic, device or issue).
type IndexEntry struct {
	Input      string    `json:"input"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceType string    `json:"device_type,omitempty"`
	// Seq is the sequence number of the turn that produced the entry.
	Seq uint64 `json:"-"`
}

// SimilarTurn is a prior turn with its Jaccard similarity to the current input.
type SimilarTurn struct {
	Turn       Turn    `json:"turn"`
	Similarity float64 `json:"similarity"`
}

// ProblemContext is the latest known value per problem field.
type ProblemContext struct {
	DeviceType   string `json:"device_type,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	Issue        string `json:"issue,omitempty"`
	BillNumber   string `json:"bill_number,omitempty"`
	PurchaseDate string `json:"purchase_date,omitempty"`
}

// MemoryStats describes a session's memory.
type MemoryStats struct {
	TotalTurns       int      `json:"total_turns"`
	DevicesDiscussed []string `json:"devices_discussed"`
	TopicsCovered    []string `json:"topics_covered"`
	IssuesDiscussed  []string `json:"issues_discussed"`
	MemorySummary    string   `json:"memory_summary"`
}

// SessionHistory is a session's turns, oldest first.
type SessionHistory struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
	Total     int    `json:"total"`
}
