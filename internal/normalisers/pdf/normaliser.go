// Package pdf reads PDF files with the poppler command line tools.
package pdf

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.DocumentReader = (*Reader)(nil)

const (
	textTool = "pdftotext"
	infoTool = "pdfinfo"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		if name == textTool {
			return nil, ErrPDFToolNotFound
		}
		return nil, fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Reader extracts text and Info-dictionary properties from PDFs.
type Reader struct {
	runner CommandRunner
}

// New creates a PDF reader that shells out to poppler.
func New() *Reader {
	return &Reader{runner: execRunner{}}
}

// NewWithRunner creates a PDF reader with a custom command runner.
func NewWithRunner(runner CommandRunner) *Reader {
	return &Reader{runner: runner}
}

// SupportedExtensions returns the extensions this reader handles.
func (r *Reader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Read extracts the full text, the text of pages 1-2 and the embedded
// properties. Missing properties are not an error; missing text is.
func (r *Reader) Read(ctx context.Context, path string) (*domain.SourceDocument, error) {
	if path == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	doc := domain.NewSourceDocument(path)

	info, err := r.runner.Run(ctx, infoTool, "-enc", "UTF-8", path)
	if err != nil {
		logger.Debug("pdfinfo failed for %s: %v", doc.Filename, err)
	} else {
		doc.Properties = parseInfo(info)
	}

	text, err := r.runner.Run(ctx, textTool, "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftotext failed: %w", domain.ErrExtractionFailure, err)
	}
	doc.Text = strings.TrimSpace(string(text))
	if doc.Text == "" {
		return nil, fmt.Errorf("%w: no extractable text in %s", domain.ErrExtractionFailure, doc.Filename)
	}

	first, err := r.runner.Run(ctx, textTool, "-enc", "UTF-8", "-f", "1", "-l", "2", path, "-")
	if err != nil {
		logger.Debug("first-page extraction failed for %s: %v", doc.Filename, err)
		first = []byte(doc.Text)
	}
	doc.FirstPages = strings.TrimSpace(string(first))

	return doc, nil
}

// parseInfo turns "Key:   value" lines from pdfinfo into lower-cased keys.
// Empty values are dropped.
func parseInfo(out []byte) map[string]string {
	props := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		props[key] = value
	}
	return props
}

// CheckAvailable returns nil if pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath(textTool); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns platform-specific instructions for installing poppler.
func InstallInstructions() string {
	return `PDF support requires poppler (pdftotext, pdfinfo).

Install with:
  macOS:   brew install poppler
  Ubuntu:  apt install poppler-utils
  Fedora:  dnf install poppler-utils`
}
