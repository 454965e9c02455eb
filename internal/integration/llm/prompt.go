package llm

import (
	"fmt"
	"strings"

	"github.com/futig/manual-assistant/internal/entity"
)

const qaTemplate = `You are a helpful AI assistant that helps users understand their electronic device manuals. Your goal is to provide accurate, helpful information based on the manual content provided.

CONTEXT:
%s

USER QUESTION:
%s

Please provide a clear, direct answer based on the manual content above. If the context doesn't contain relevant information to answer the question, please say so. Focus on accuracy and clarity.

ANSWER:`

const supportTicketTemplate = `Please create a professional, well-structured summary of this customer support conversation for a support ticket. Format the response exactly as shown below:

**Support Ticket Summary**

**Customer's Main Issue/Question:**
[Provide a clear, concise statement of the primary issue or question, including any specific product/model mentioned]

**Goal:**
[One-line description of what the customer was trying to accomplish]

**Key Details:**
1. [Important detail with page reference if available]
2. [Important detail with page reference if available]
3. [Important detail with page reference if available]
4. [Important detail with page reference if available]

**Additional Context:**
- [Any relevant background information]
- [Any important clarifications made]
- [Any safety or critical notes]

**Actionable Next Steps:**
[Clear recommendation for what should happen next]

Use the above format strictly, maintaining the bold headers and bullet points. Include page references whenever available from the manual. Be specific about product names and model numbers when mentioned.

Conversation:
%s

Summary:`

const generalSummaryTemplate = `Please create a concise, well-structured summary of this conversation:

%s

Summary:`

// FallbackResponse is returned when generation fails.
const FallbackResponse = "I apologize, but I'm having trouble generating a response at the moment. Please try again later."

func orUnknown(s string) string {
	if s == "" {
		return entity.UnknownValue
	}
	return s
}

// buildContext renders retrieved chunks for the QA prompt and collects the
// distinct sources in first-seen order.
func buildContext(docs []entity.RetrievedChunk) (string, []entity.Source) {
	var sb strings.Builder
	sources := make([]entity.Source, 0, len(docs))
	seen := make(map[entity.Source]struct{}, len(docs))

	for _, d := range docs {
		c := d.Chunk
		fmt.Fprintf(&sb, "\nFrom %s %s manual (Page %d):\n%s\n", orUnknown(c.Brand), orUnknown(c.Model), c.Page, c.Text)

		lang := c.Language
		if lang == "" {
			lang = entity.DefaultLanguage
		}
		src := entity.Source{
			Brand:    orUnknown(c.Brand),
			Model:    orUnknown(c.Model),
			Page:     c.Page,
			Filename: orUnknown(c.Filename),
			Language: lang,
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}

	return sb.String(), sources
}

func qaPrompt(context, question string) string {
	return fmt.Sprintf(qaTemplate, context, question)
}

// conversationText renders summary messages as "User:/Assistant:" blocks,
// skipping empty ones.
func conversationText(messages []entity.SummaryMessage) string {
	var sb strings.Builder
	for _, m := range messages {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		role := "Assistant"
		if m.Sender == "user" {
			role = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n\n", role, text)
	}
	return sb.String()
}

func summaryPrompt(style entity.SummaryStyle, conversation string) string {
	if style == entity.SummarySupportTicket {
		return fmt.Sprintf(supportTicketTemplate, conversation)
	}
	return fmt.Sprintf(generalSummaryTemplate, conversation)
}
