package entity

// EmbeddingRequest is an OpenAI-compatible embeddings request.
type EmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type EmbeddingResponse struct {
	Data []EmbeddingData `json:"data"`
}

// ChatMessage is an OpenAI-compatible chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type ChatCompletionChoice struct {
	Message ChatMessage `json:"message"`
}

type ChatCompletionResponse struct {
	Choices []ChatCompletionChoice `json:"choices"`
}

// GenerateRequest is what the agent hands to the generation collaborator.
type GenerateRequest struct {
	Question         string
	Documents        []RetrievedChunk
	Brand            string
	Model            string
	ResponseLanguage string
}

// GenerateResponse is the grounded answer and the pages it came from.
type GenerateResponse struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// TranslateRequest is a translation service request.
type TranslateRequest struct {
	Text   string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type TranslateResponse struct {
	TranslatedText string `json:"translatedText"`
}
