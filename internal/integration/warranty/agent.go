package warranty

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

const daysPerMonth = 30

var (
	warrantyQueryRe = regexp.MustCompile(`(?i)\bwarranty\b|\bbill\s*number\b`)
	billNumberRe    = regexp.MustCompile(`(?i)bill\s*number\s*[:\-]?\s*(\w+)`)
	purchaseDateRe  = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	periodRe        = regexp.MustCompile(`(?i)(\d+)\s*(month|months|year|years)`)

	endDateTerms = []string{"end", "expire", "until", "valid", "still", "status", "how long", "when"}
)

// Retriever finds manual passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filter entity.SearchFilter, k int) ([]entity.RetrievedChunk, error)
}

// Agent answers warranty status questions from a bill number, a purchase
// date and the warranty period stated in the manuals.
type Agent struct {
	retriever     Retriever
	defaultMonths int
	now           func() time.Time
}

func NewAgent(retriever Retriever, defaultMonths int) *Agent {
	if defaultMonths < 1 {
		defaultMonths = 12
	}
	return &Agent{retriever: retriever, defaultMonths: defaultMonths, now: time.Now}
}

func IsWarrantyQuery(input string) bool {
	return warrantyQueryRe.MatchString(input)
}

// IsEndDateQuery reports a warranty question about when coverage ends.
func IsEndDateQuery(input string) bool {
	if !IsWarrantyQuery(input) {
		return false
	}
	lower := strings.ToLower(input)
	for _, term := range endDateTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// IsEndDateQuery is the package IsEndDateQuery as a method.
func (a *Agent) IsEndDateQuery(input string) bool {
	return IsEndDateQuery(input)
}

func ExtractBillNumber(input string) string {
	if m := billNumberRe.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return ""
}

func ExtractPurchaseDate(input string) string {
	if m := purchaseDateRe.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return ""
}

// Act answers a warranty question. Bill number and purchase date found in
// input take precedence over the remembered problem context.
func (a *Agent) Act(ctx context.Context, input string, known entity.ProblemContext) string {
	billNumber := ExtractBillNumber(input)
	if billNumber == "" {
		billNumber = known.BillNumber
	}
	purchaseDate := ExtractPurchaseDate(input)
	if purchaseDate == "" {
		purchaseDate = known.PurchaseDate
	}

	if billNumber == "" {
		return "Could you please provide your bill number to check the warranty status?"
	}

	months := a.warrantyMonths(ctx, billNumber, known)

	if purchaseDate == "" {
		return fmt.Sprintf("Warranty period for your product (Bill No: %s) is %d months from the purchase date. "+
			"Please provide the purchase date in YYYY-MM-DD format to check if it's still under warranty.", billNumber, months)
	}

	purchased, err := time.Parse(time.DateOnly, purchaseDate)
	if err != nil {
		return "Could not parse the purchase date. Please provide it in YYYY-MM-DD format."
	}

	end := purchased.AddDate(0, 0, daysPerMonth*months)
	if !a.now().After(end) {
		return fmt.Sprintf("Your product (Bill No: %s) is under warranty until %s.", billNumber, end.Format(time.DateOnly))
	}
	return fmt.Sprintf("Your product (Bill No: %s) is no longer under warranty (expired on %s).", billNumber, end.Format(time.DateOnly))
}

// warrantyMonths reads the first period stated in retrieved warranty
// passages, falling back to the default.
func (a *Agent) warrantyMonths(ctx context.Context, billNumber string, known entity.ProblemContext) int {
	if a.retriever == nil {
		return a.defaultMonths
	}

	filter := entity.SearchFilter{Brand: known.Brand, Model: known.Model}
	docs, err := a.retriever.Retrieve(ctx, "warranty information for bill number "+billNumber, filter, 4)
	if err != nil {
		ctxzap.Warn(ctx, "warranty lookup failed, using default period", zap.Error(err))
		return a.defaultMonths
	}

	for _, d := range docs {
		m := periodRe.FindStringSubmatch(d.Chunk.Text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n == 0 {
			continue
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "year") {
			return n * 12
		}
		return n
	}
	return a.defaultMonths
}
