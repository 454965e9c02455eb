package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/integration/warranty"
	"github.com/futig/manual-assistant/internal/memory"
)

const warrantyPrompt = "Before we proceed, could you please provide your bill number and purchase date? " +
	"This will help me check if your product is under warranty and give you the best support."

const (
	stepFailureResponse = "I encountered an error while processing your request. Please try again."
	emptyResponse       = "Sorry, I couldn't generate a response. Please try rephrasing your question."
)

const (
	agentWarranty          = "warranty"
	lastPromptPurchaseDate = "ask_purchase_date"
	unanchoredWordCount    = 5
	recentContextTurns     = 3
	conversationWindow     = 5
)

// Retriever finds manual passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filter entity.SearchFilter, k int) ([]entity.RetrievedChunk, error)
}

// Generator writes a grounded answer. It absorbs provider failures.
type Generator interface {
	GenerateResponse(ctx context.Context, req *entity.GenerateRequest) *entity.GenerateResponse
}

// Warranty answers warranty end date questions.
type Warranty interface {
	IsEndDateQuery(input string) bool
	Act(ctx context.Context, input string, known entity.ProblemContext) string
}

// SessionStore hands out per-session memory and records turns.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*memory.Memory, error)
	Record(ctx context.Context, sessionID string, mem *memory.Memory, input, response string, meta entity.TurnMetadata) entity.Turn
}

type Option func(*Agent)

// WithTopK sets the number of passages retrieved per query. Zero leaves
// the choice to the retriever.
func WithTopK(k int) Option {
	return func(a *Agent) { a.topK = k }
}

func WithDeviceProfiles(profiles []DeviceProfile) Option {
	return func(a *Agent) { a.detector = NewDeviceDetector(profiles) }
}

// Agent runs the Monitor, Critic, Planner and Act loop for one turn at a
// time against a session's memory.
type Agent struct {
	detector  *DeviceDetector
	retriever Retriever
	generator Generator
	warranty  Warranty
	sessions  SessionStore
	topK      int
	now       func() time.Time
}

func New(retriever Retriever, generator Generator, warrantyAgent Warranty, sessions SessionStore, opts ...Option) *Agent {
	a := &Agent{
		detector:  NewDeviceDetector(DefaultProfiles()),
		retriever: retriever,
		generator: generator,
		warranty:  warrantyAgent,
		sessions:  sessions,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Act processes one user input for a session and returns the response
// envelope. Tool failures become a generic apology; only a failure to load
// the session's memory is returned as an error.
func (a *Agent) Act(ctx context.Context, sessionID, input string, hints Hints) (*entity.ChatResponse, error) {
	mem, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session memory: %w", err)
	}

	state := a.Monitor(input, hints)
	if det := a.detector.Detect(input); det.DeviceType != "" {
		state.DeviceType = det.DeviceType
		state.QueryCategory = det.Category
		state.DeviceDetails = det.Details
	}

	tc := a.enhance(input, hints, &state, mem)

	ctxzap.Debug(ctx, "input monitored",
		zap.String("intent", string(state.Intent)),
		zap.String("device_type", state.DeviceType),
		zap.String("query_category", string(state.QueryCategory)),
		zap.Bool("is_followup", tc.IsFollowup),
	)

	if a.warranty != nil && a.warranty.IsEndDateQuery(input) {
		response := a.warranty.Act(ctx, input, tc.Problem)
		meta := problemMetadata(tc.Problem)
		meta.Agent = agentWarranty
		a.sessions.Record(ctx, sessionID, mem, input, response, meta)
		return a.envelope(sessionID, mem, state, tc, response, nil, Critique{Message: "Answered warranty end date", Confidence: 1}, false), nil
	}

	if state.DeviceType != "" && !mem.HasPromptedForWarranty(state.DeviceType) && !tc.HasWarrantyFacts() {
		meta := problemMetadata(tc.Problem)
		meta.DeviceType = state.DeviceType
		meta.QueryCategory = state.QueryCategory
		meta.PromptedFor = entity.PromptedForWarranty
		meta.Agent = agentWarranty
		meta.LastPrompt = lastPromptPurchaseDate
		a.sessions.Record(ctx, sessionID, mem, input, warrantyPrompt, meta)

		ctxzap.Debug(ctx, "prompted for warranty details", zap.String("device_type", state.DeviceType))
		return a.envelope(sessionID, mem, state, tc, warrantyPrompt, nil, Critique{Message: "Prompted for warranty info", Confidence: 1}, true), nil
	}

	critique := a.Critic(state, tc)
	steps := a.Planner(state, critique, tc)

	ctxzap.Debug(ctx, "plan created",
		zap.Float64("confidence", critique.Confidence),
		zap.Bool("needs_revision", critique.NeedsRevision),
		zap.Int("steps", len(steps)),
	)

	response, sources := a.execute(ctx, steps, tc, mem)
	if strings.TrimSpace(response) == "" {
		ctxzap.Warn(ctx, "no response produced, using fallback")
		response = emptyResponse
	}

	meta := problemMetadata(tc.Problem)
	meta.DeviceType = state.DeviceType
	meta.QueryCategory = state.QueryCategory
	meta.DeviceDetails = state.DeviceDetails
	meta.Confidence = critique.Confidence
	meta.IsFollowup = tc.ShortOrUnanchored
	a.sessions.Record(ctx, sessionID, mem, input, response, meta)

	return a.envelope(sessionID, mem, state, tc, response, sources, critique, tc.AwaitingClarification), nil
}

// enhance builds the turn context from hints, mentioned entities and
// memory. A follow-up without a detected device inherits the previous
// turn's device, which is written back into state.
func (a *Agent) enhance(input string, hints Hints, state *entity.MonitorState, mem *memory.Memory) *TurnContext {
	tc := &TurnContext{
		Hints:      hints,
		Mentioned:  ExtractEntities(input),
		IsFollowup: mem.IsFollowup(input),
	}

	if tc.IsFollowup {
		if recent := mem.RecentTurns(recentContextTurns); len(recent) > 0 {
			last := recent[len(recent)-1]
			tc.PreviousDevice = last.Metadata.DeviceType
			tc.PreviousCategory = last.Metadata.QueryCategory
			for _, t := range recent {
				tc.RecentInputs = append(tc.RecentInputs, t.UserInput)
			}
		}
	}

	tc.SimilarTurns = mem.FindSimilarTurns(input, memory.DefaultSimilarThreshold)
	if state.DeviceType != "" {
		tc.DeviceHistory = mem.DeviceHistory(state.DeviceType)
	}
	tc.Summary = mem.Summary()
	tc.Conversation = mem.RecentTurns(conversationWindow)

	switch {
	case state.DeviceType != "":
		tc.CurrentDevice = state.DeviceType
	case tc.IsFollowup && tc.PreviousDevice != "":
		tc.CurrentDevice = tc.PreviousDevice
		state.DeviceType = tc.PreviousDevice
	}

	var issue string
	if state.DeviceDetails != nil && len(state.DeviceDetails.Issues) > 0 {
		issue = state.DeviceDetails.Issues[0]
	}
	tc.Problem = entity.ProblemContext{
		DeviceType:   tc.CurrentDevice,
		Brand:        firstNonEmpty(hints.Brand, tc.Mentioned.Brand),
		Model:        firstNonEmpty(hints.Model, tc.Mentioned.Model),
		Issue:        issue,
		BillNumber:   firstNonEmpty(hints.BillNumber, warranty.ExtractBillNumber(input)),
		PurchaseDate: firstNonEmpty(hints.PurchaseDate, warranty.ExtractPurchaseDate(input)),
	}
	known := mem.LatestProblemContext()
	tc.Problem.DeviceType = firstNonEmpty(tc.Problem.DeviceType, known.DeviceType)
	tc.Problem.Brand = firstNonEmpty(tc.Problem.Brand, known.Brand)
	tc.Problem.Model = firstNonEmpty(tc.Problem.Model, known.Model)
	tc.Problem.Issue = firstNonEmpty(tc.Problem.Issue, known.Issue)
	tc.Problem.BillNumber = firstNonEmpty(tc.Problem.BillNumber, known.BillNumber)
	tc.Problem.PurchaseDate = firstNonEmpty(tc.Problem.PurchaseDate, known.PurchaseDate)

	lower := strings.ToLower(input)
	tc.ShortOrUnanchored = len(strings.Fields(input)) < unanchoredWordCount || !tc.anchored(lower)
	return tc
}

type stepResult struct {
	response string
	sources  []entity.Source
	docs     []entity.RetrievedChunk
}

// execute runs steps in order. It stops after a clarify step, and on the
// first failing step answers with an apology.
func (a *Agent) execute(ctx context.Context, steps []Step, tc *TurnContext, mem *memory.Memory) (string, []entity.Source) {
	var res stepResult
	for _, step := range steps {
		if err := a.runStep(ctx, step, tc, mem, &res); err != nil {
			ctxzap.Error(ctx, "step execution failed",
				zap.String("tool", string(step.Tool)),
				zap.Error(err),
			)
			return stepFailureResponse, nil
		}
		if step.Tool == ToolClarify {
			break
		}
	}
	return res.response, res.sources
}

func (a *Agent) runStep(ctx context.Context, step Step, tc *TurnContext, mem *memory.Memory, res *stepResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", step.Tool, r)
		}
	}()

	ctxzap.Debug(ctx, "executing step", zap.String("tool", string(step.Tool)))

	switch step.Tool {
	case ToolGreet:
		res.response = Greeting(tc.ResponseLanguage)
	case ToolHelp:
		res.response = helpText
	case ToolConversationHistory:
		res.response = AnswerHistory(step.Args.Query, mem)
	case ToolClarify:
		res.response = clarifyResponse
	case ToolRetrieve:
		docs, err := a.retrieve(ctx, step.Args, tc)
		if err != nil {
			return err
		}
		res.docs = docs
	case ToolGenerate:
		res.response, res.sources = a.generate(ctx, step.Args.Query, res.docs, tc)
	default:
		return fmt.Errorf("%w: unknown tool %q", entity.ErrInvalidParameter, step.Tool)
	}
	return nil
}

func (a *Agent) envelope(
	sessionID string,
	mem *memory.Memory,
	state entity.MonitorState,
	tc *TurnContext,
	response string,
	sources []entity.Source,
	critique Critique,
	awaiting bool,
) *entity.ChatResponse {
	if sources == nil {
		sources = []entity.Source{}
	}

	recent := mem.RecentTurns(conversationWindow)
	conversation := make([]entity.ConversationEntry, 0, len(recent))
	for _, t := range recent {
		conversation = append(conversation, entity.ConversationEntry{
			User:       t.UserInput,
			Response:   t.Response,
			DeviceType: t.Metadata.DeviceType,
			Category:   t.Metadata.QueryCategory,
			Confidence: t.Metadata.Confidence,
			Timestamp:  t.Timestamp,
		})
	}

	return &entity.ChatResponse{
		SessionID:             sessionID,
		Response:              response,
		Sources:               sources,
		Timestamp:             a.now(),
		AwaitingClarification: awaiting,
		Monitor:               state,
		Critique:              critique.Message,
		Confidence:            critique.Confidence,
		DeviceType:            state.DeviceType,
		QueryCategory:         state.QueryCategory,
		Conversation:          conversation,
		MemorySummary:         mem.Summary(),
		IsFollowup:            tc.ShortOrUnanchored,
		ConversationLength:    mem.Len(),
	}
}

func problemMetadata(p entity.ProblemContext) entity.TurnMetadata {
	return entity.TurnMetadata{
		DeviceType:   p.DeviceType,
		Brand:        p.Brand,
		Model:        p.Model,
		Issue:        p.Issue,
		BillNumber:   p.BillNumber,
		PurchaseDate: p.PurchaseDate,
	}
}
