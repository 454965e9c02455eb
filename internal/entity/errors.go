package entity

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Domain errors
var (
	// Manual errors
	ErrManualNotFound    = errors.New("manual not found")
	ErrDuplicateFilename = errors.New("a file with this name already exists")
	ErrEmptyDocument     = errors.New("no content found in document")

	// File errors
	ErrInvalidFile       = errors.New("invalid file")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidExtension  = errors.New("invalid file extension")
	ErrUnsupportedFormat = errors.New("unsupported format")

	// Conversation errors
	ErrSessionNotFound = errors.New("session not found")

	// Index errors
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// DimensionMismatchError is returned when a vector does not have the
// configured embedding dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
	Position int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector %d has dimension %d, expected %d", e.Position, e.Got, e.Expected)
}

// Artifact names one of the three co-versioned files of the knowledge base.
type Artifact string

const (
	ArtifactIndex     Artifact = "index"
	ArtifactChunks    Artifact = "chunks"
	ArtifactManifests Artifact = "manifests"
)

// AllArtifacts lists artifacts in save order.
var AllArtifacts = []Artifact{ArtifactIndex, ArtifactChunks, ArtifactManifests}

// SaveError reports which persisted artifacts could not be written.
// In-memory state is kept regardless.
type SaveError struct {
	Failed []Artifact
	Err    error
}

func (e *SaveError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, a := range e.Failed {
		names = append(names, string(a))
	}
	return fmt.Sprintf("save %d/%d artifacts failed (%s): %v",
		len(e.Failed), len(AllArtifacts), strings.Join(names, ", "), e.Err)
}

func (e *SaveError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

// Total reports whether every artifact failed to save.
func (e *SaveError) Total() bool {
	return len(e.Failed) == len(AllArtifacts)
}

// Has reports whether the given artifact failed.
func (e *SaveError) Has(a Artifact) bool {
	for _, f := range e.Failed {
		if f == a {
			return true
		}
	}
	return false
}
