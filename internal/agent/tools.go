package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

const (
	noDocumentsResponse = "Sorry, I couldn't find any relevant information to answer your question."
	emptyAnswerResponse = "Sorry, I couldn't generate an answer."
)

const clarifyResponse = "Can you please provide more details about your issue or question? " +
	"For example, what are you trying to do, what error or problem are you facing, or what outcome do you expect?"

const generationInstruction = "You are a helpful assistant. The following is a conversation between a user and you, the assistant. " +
	"Always use the conversation history below to answer the user's question, especially if they refer to previous questions or say things like 'what did I ask before?'. " +
	"If the question is about the manual, use the manual context provided after the conversation history. " +
	"If you do not know the answer, say 'I don't know' rather than saying you don't have access to the conversation."

var greetings = map[string]string{
	"en": "👋 Hi! I'm your manual assistant, ready to help you understand and get the most out of your electronic devices. How can I assist you today?",
	"es": "👋 ¡Hola! Soy tu asistente de manuales, listo para ayudarte a entender y aprovechar al máximo tus dispositivos electrónicos. ¿Cómo puedo ayudarte hoy?",
	"hi": "👋 नमस्ते! मैं आपका मैनुअल सहायक हूं, आपके इलेक्ट्रॉनिक उपकरणों को समझने और उनका सर्वोत्तम उपयोग करने में मदद करने के लिए तैयार हूं। मैं आज आपकी कैसे सहायता कर सकता हूं?",
	"pl": "👋 Cześć! Jestem twoim asystentem instrukcji, gotowym pomóc ci zrozumieć i wykorzystać maksymalnie twoje urządzenia elektroniczne. Jak mogę ci dziś pomóc?",
}

const helpText = "I'm your dedicated product expert, here to help you with:\n\n" +
	"### 🔍 Product Features\n" +
	"• Understanding device features and specifications\n" +
	"• Getting the best performance from your device\n" +
	"• Discovering advanced capabilities\n\n" +
	"### 🛠️ Support & Guidance\n" +
	"• Setup and installation instructions\n" +
	"• Troubleshooting common issues\n" +
	"• Step-by-step configuration\n\n" +
	"### 💡 Maintenance\n" +
	"• Care guidelines and best practices\n" +
	"• Optimization tips\n" +
	"• Safety recommendations\n\n" +
	"*What specific aspect would you like to learn more about?*"

// Greeting returns the greeting in lang, English when lang is unknown.
func Greeting(lang string) string {
	if g, ok := greetings[lang]; ok {
		return g
	}
	return greetings["en"]
}

// IsLocalized reports whether the reply for state is already written in
// lang and must not be translated again.
func IsLocalized(state entity.MonitorState, lang string) bool {
	_, ok := greetings[lang]
	return state.Intent == entity.IntentGreet && ok
}

func (a *Agent) retrieve(ctx context.Context, args StepArgs, tc *TurnContext) ([]entity.RetrievedChunk, error) {
	filter := tc.Filter()
	docs, err := a.retriever.Retrieve(ctx, args.Query, filter, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}

	ctxzap.Debug(ctx, "documents retrieved",
		zap.Int("count", len(docs)),
		zap.String("brand", filter.Brand),
		zap.String("model", filter.Model),
		zap.String("priority", string(args.Priority)),
	)
	return docs, nil
}

// generate answers question from docs, grouped by manual and ordered by
// page, with the recent conversation in front of the question.
func (a *Agent) generate(ctx context.Context, question string, docs []entity.RetrievedChunk, tc *TurnContext) (string, []entity.Source) {
	if len(docs) == 0 {
		return noDocumentsResponse, nil
	}

	resp := a.generator.GenerateResponse(ctx, &entity.GenerateRequest{
		Question:         generationQuestion(question, tc.Conversation),
		Documents:        groupByManual(docs),
		Brand:            tc.Hints.Brand,
		Model:            tc.Hints.Model,
		ResponseLanguage: tc.ResponseLanguage,
	})
	if resp == nil || strings.TrimSpace(resp.Response) == "" {
		return emptyAnswerResponse, nil
	}
	return resp.Response, resp.Sources
}

func generationQuestion(question string, conversation []entity.Turn) string {
	var sb strings.Builder
	sb.WriteString(generationInstruction)
	sb.WriteString("\n\n")
	for _, t := range conversation {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", t.UserInput, t.Response)
	}
	fmt.Fprintf(&sb, "User: %s\nAssistant:", question)
	return sb.String()
}

// groupByManual orders docs manual by manual, in order of first
// appearance, and by page within a manual.
func groupByManual(docs []entity.RetrievedChunk) []entity.RetrievedChunk {
	type manualKey struct{ brand, model string }

	var order []manualKey
	groups := make(map[manualKey][]entity.RetrievedChunk)
	for _, d := range docs {
		k := manualKey{d.Chunk.Brand, d.Chunk.Model}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d)
	}

	out := make([]entity.RetrievedChunk, 0, len(docs))
	for _, k := range order {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Chunk.Page < g[j].Chunk.Page })
		out = append(out, g...)
	}
	return out
}
