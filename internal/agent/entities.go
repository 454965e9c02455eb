package agent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	knownBrands = []string{
		"samsung", "lg", "whirlpool", "ge", "maytag", "bosch", "kenmore",
		"electrolux", "frigidaire", "haier", "siemens", "miele",
	}

	errorCodeRe = regexp.MustCompile(`\b[A-Z]{1,3}\d{1,3}\b|\b\d{1,3}[A-Z]{1,3}\b`)
	modelRe     = regexp.MustCompile(`\bMODEL\s+([A-Z0-9\-]{3,})\b`)
)

// Entities are the brand, model and error codes mentioned in an input.
type Entities struct {
	Brand      string
	Model      string
	ErrorCodes []string
}

// ExtractEntities finds the first known brand (by substring), error codes
// such as E21 or 4C, and a "model <id>" mention.
func ExtractEntities(input string) Entities {
	var e Entities
	lower := strings.ToLower(input)
	for _, b := range knownBrands {
		if strings.Contains(lower, b) {
			e.Brand = titleCase(b)
			break
		}
	}

	upper := strings.ToUpper(input)
	e.ErrorCodes = errorCodeRe.FindAllString(upper, -1)
	if m := modelRe.FindStringSubmatch(upper); m != nil {
		e.Model = m[1]
	}
	return e
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
