package warranty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/futig/manual-assistant/internal/entity"
)

type stubRetriever struct {
	texts []string
	err   error
}

func (s *stubRetriever) Retrieve(context.Context, string, entity.SearchFilter, int) ([]entity.RetrievedChunk, error) {
	out := make([]entity.RetrievedChunk, 0, len(s.texts))
	for _, t := range s.texts {
		out = append(out, entity.RetrievedChunk{Chunk: entity.Chunk{Text: t}})
	}
	return out, s.err
}

func newTestAgent(r Retriever) *Agent {
	a := NewAgent(r, 12)
	a.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return a
}

func TestQueryDetection(t *testing.T) {
	assert.True(t, IsWarrantyQuery("Is my WARRANTY still valid?"))
	assert.True(t, IsWarrantyQuery("my bill number is 42"))
	assert.False(t, IsWarrantyQuery("warranties are nice"))

	assert.True(t, IsEndDateQuery("when does my warranty expire"))
	assert.False(t, IsEndDateQuery("what does the warranty cover"))
	assert.False(t, IsEndDateQuery("when does the cycle end"))
}

func TestExtraction(t *testing.T) {
	assert.Equal(t, "AB123", ExtractBillNumber("Bill number: AB123 please"))
	assert.Equal(t, "77", ExtractBillNumber("billnumber-77"))
	assert.Equal(t, "", ExtractBillNumber("no bill here"))
	assert.Equal(t, "2023-01-15", ExtractPurchaseDate("bought on 2023-01-15"))
}

func TestAgent_Act(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		retriever Retriever
		input     string
		known     entity.ProblemContext
		want      string
	}{
		{
			name:  "missing bill number",
			input: "when does my warranty end",
			want:  "Could you please provide your bill number to check the warranty status?",
		},
		{
			name:  "period without date",
			input: "warranty for bill number 55",
			want:  "Warranty period for your product (Bill No: 55) is 12 months from the purchase date. Please provide the purchase date in YYYY-MM-DD format to check if it's still under warranty.",
		},
		{
			name:      "under warranty with period from manual",
			retriever: &stubRetriever{texts: []string{"no period here", "This appliance carries a 2 year warranty."}},
			input:     "warranty status bill number 9 bought 2023-01-01",
			want:      "Your product (Bill No: 9) is under warranty until 2024-12-21.",
		},
		{
			name:  "expired",
			input: "is my warranty still valid? bill number 9, 2023-01-01",
			want:  "Your product (Bill No: 9) is no longer under warranty (expired on 2023-12-27).",
		},
		{
			name:  "remembered values are used",
			input: "when does my warranty end",
			known: entity.ProblemContext{BillNumber: "B1", PurchaseDate: "2024-03-01"},
			want:  "Your product (Bill No: B1) is under warranty until 2025-02-24.",
		},
		{
			name:  "unparsable date",
			input: "warranty bill number 9",
			known: entity.ProblemContext{PurchaseDate: "2024-13-45"},
			want:  "Could not parse the purchase date. Please provide it in YYYY-MM-DD format.",
		},
		{
			name:      "retriever failure falls back to default",
			retriever: &stubRetriever{err: errors.New("index down")},
			input:     "warranty bill number 9",
			want:      "Warranty period for your product (Bill No: 9) is 12 months from the purchase date. Please provide the purchase date in YYYY-MM-DD format to check if it's still under warranty.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTestAgent(tt.retriever).Act(ctx, tt.input, tt.known))
		})
	}
}
