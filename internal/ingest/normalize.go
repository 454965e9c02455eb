package ingest

import "strings"

const paragraphMarker = "\x00PARA\x00"

// NormalizePage folds single line breaks into spaces and keeps double line
// breaks as paragraph boundaries.
func NormalizePage(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n\n", paragraphMarker)
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, paragraphMarker, "\n\n")
}
