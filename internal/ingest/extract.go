package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/schema/soo/wml"

	"github.com/futig/manual-assistant/internal/entity"
)

const formFeed = "\f"

var ErrPDFToolNotFound = errors.New("pdftotext not found; install poppler-utils")

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Extractor turns manual files into per-page text.
type Extractor struct {
	pdfToText string
	runner    CommandRunner
}

func NewExtractor(pdfToTextPath string) *Extractor {
	return NewExtractorWithRunner(pdfToTextPath, execRunner{})
}

func NewExtractorWithRunner(pdfToTextPath string, runner CommandRunner) *Extractor {
	if pdfToTextPath == "" {
		pdfToTextPath = "pdftotext"
	}
	return &Extractor{pdfToText: pdfToTextPath, runner: runner}
}

// Pages extracts the text of every page, numbered from 1. Pages may be
// empty; a document with no text at all is ErrEmptyDocument.
func (e *Extractor) Pages(ctx context.Context, filename string, content []byte) ([]entity.Page, error) {
	var (
		texts []string
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		texts, err = e.pdfPages(ctx, content)
	case ".docx":
		texts, err = docxPages(content)
	case ".txt", ".md":
		texts = splitFormFeed(string(content))
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidExtension, ext)
	}
	if err != nil {
		return nil, err
	}

	pages := make([]entity.Page, len(texts))
	empty := true
	for i, t := range texts {
		pages[i] = entity.Page{Number: i + 1, Text: t}
		if strings.TrimSpace(t) != "" {
			empty = false
		}
	}
	if empty {
		return nil, entity.ErrEmptyDocument
	}
	return pages, nil
}

func (e *Extractor) pdfPages(ctx context.Context, content []byte) ([]string, error) {
	if _, err := exec.LookPath(e.pdfToText); err != nil {
		return nil, ErrPDFToolNotFound
	}

	tmp, err := os.CreateTemp("", "manual-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp pdf: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp pdf: %w", err)
	}

	out, err := e.runner.Run(ctx, e.pdfToText, "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftotext failed: %v", entity.ErrInvalidFile, err)
	}
	return splitFormFeed(string(out)), nil
}

// splitFormFeed splits on form feeds, dropping the empty piece after a
// trailing one.
func splitFormFeed(text string) []string {
	pages := strings.Split(text, formFeed)
	if len(pages) > 1 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// docxPages splits a DOCX body on explicit page breaks. Paragraphs are
// separated by blank lines.
func docxPages(content []byte) ([]string, error) {
	doc, err := document.Read(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: read docx: %v", entity.ErrInvalidFile, err)
	}
	defer doc.Close()

	var (
		pages   []string
		current []string
		para    strings.Builder
	)
	flushPara := func() {
		if text := strings.TrimSpace(para.String()); text != "" {
			current = append(current, text)
		}
		para.Reset()
	}
	flushPage := func() {
		pages = append(pages, strings.Join(current, "\n\n"))
		current = nil
	}

	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			if hasPageBreak(r) {
				flushPara()
				flushPage()
			}
			para.WriteString(r.Text())
		}
		flushPara()
	}
	flushPage()

	return pages, nil
}

func hasPageBreak(r document.Run) bool {
	for _, ic := range r.X().EG_RunInnerContent {
		if ic.Br != nil && ic.Br.TypeAttr == wml.ST_BrTypePage {
			return true
		}
	}
	return false
}
