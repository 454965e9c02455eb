package entity

import "time"

type Intent string

const (
	IntentConversationHistory Intent = "conversation_history"
	IntentGreet               Intent = "greet"
	IntentHelp                Intent = "help"
	IntentQuery               Intent = "query"
)

// MonitorState is the Monitor's classification of one input.
type MonitorState struct {
	Intent        Intent         `json:"intent"`
	DeviceType    string         `json:"device_type,omitempty"`
	QueryCategory QueryCategory  `json:"query_category,omitempty"`
	DeviceDetails *DeviceDetails `json:"device_details,omitempty"`
	MissingInfo   []string       `json:"missing_info"`
	UserInput     string         `json:"user_input"`
}

// Source identifies a manual page an answer was grounded on.
type Source struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Page     int    `json:"page"`
	Filename string `json:"filename"`
	Language string `json:"language"`
}

// ConversationEntry is a compact turn for the response envelope.
type ConversationEntry struct {
	User       string        `json:"user"`
	Response   string        `json:"response"`
	DeviceType string        `json:"device_type,omitempty"`
	Category   QueryCategory `json:"category,omitempty"`
	Confidence float64       `json:"confidence"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ChatRequest is one user utterance plus caller hints.
type ChatRequest struct {
	SessionID             string `json:"session_id"`
	Message               string `json:"message"`
	SourceLanguage        string `json:"source_language"`
	ResponseLanguage      string `json:"responseLanguage"`
	Brand                 string `json:"brand"`
	Model                 string `json:"model"`
	BillNumber            string `json:"bill_number"`
	PurchaseDate          string `json:"purchase_date"`
	RequireBrand          bool   `json:"require_brand"`
	RequireModel          bool   `json:"require_model"`
	AwaitingClarification *bool  `json:"awaiting_clarification"`
}

// ChatResponse is the full envelope returned for a turn.
type ChatResponse struct {
	SessionID             string              `json:"session_id"`
	Response              string              `json:"response"`
	Sources               []Source            `json:"sources"`
	Timestamp             time.Time           `json:"timestamp"`
	AwaitingClarification bool                `json:"awaiting_clarification"`
	Monitor               MonitorState        `json:"monitor"`
	Critique              string              `json:"critique"`
	Confidence            float64             `json:"confidence"`
	DeviceType            string              `json:"device_type,omitempty"`
	QueryCategory         QueryCategory       `json:"query_category,omitempty"`
	Conversation          []ConversationEntry `json:"conversation"`
	MemorySummary         string              `json:"memory_summary"`
	IsFollowup            bool                `json:"is_followup"`
	ConversationLength    int                 `json:"conversation_length"`
}

// SummaryStyle selects a conversation summary template.
type SummaryStyle string

const (
	SummaryGeneral       SummaryStyle = "general"
	SummarySupportTicket SummaryStyle = "support_ticket"
)

// SummaryMessage is one message of a conversation to summarise.
type SummaryMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// SummarizeRequest summarises Messages, or the stored conversation of
// SessionID when no messages are given.
type SummarizeRequest struct {
	Messages  []SummaryMessage `json:"messages"`
	Context   SummaryStyle     `json:"context"`
	SessionID string           `json:"session_id,omitempty"`
}

type SummarizeResponse struct {
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// ResultFormat is a transcript export format.
type ResultFormat string

const (
	FormatMarkdown ResultFormat = "markdown"
	FormatDOCX     ResultFormat = "docx"
	FormatPDF      ResultFormat = "pdf"
)

// ExportFile is a rendered conversation transcript.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ErrorResponse is the JSON error body of the HTTP API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ClearMemoryRequest struct {
	SessionID string `json:"session_id"`
}
