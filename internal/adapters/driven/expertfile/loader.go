// Package expertfile loads expert corrections and exemplars from YAML or
// JSON import files.
package expertfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.ExpertSource = (*Loader)(nil)

// maxFileBytes bounds an import file read into memory.
const maxFileBytes = 16 << 20

// Loader reads expert import files from disk.
type Loader struct{}

// New creates a loader.
func New() *Loader {
	return &Loader{}
}

// Load parses the file at path. .yaml and .yml files are YAML, .json files
// are JSON. Unknown fields are rejected so typos in hand-written files are
// reported instead of silently dropped.
func (l *Loader) Load(path string) (*domain.ExpertImport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening expert file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading expert file: %w", err)
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("%w: expert file larger than %d bytes", domain.ErrInvalidInput, maxFileBytes)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return decodeYAML(data)
	case ".json":
		return decodeJSON(data)
	default:
		return nil, fmt.Errorf("%w: expert file extension %q (want .yaml, .yml or .json)", domain.ErrUnsupportedType, ext)
	}
}

func decodeYAML(data []byte) (*domain.ExpertImport, error) {
	var out domain.ExpertImport
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return &out, nil
		}
		return nil, fmt.Errorf("%w: parsing YAML: %w", domain.ErrInvalidInput, err)
	}
	return &out, nil
}

func decodeJSON(data []byte) (*domain.ExpertImport, error) {
	var out domain.ExpertImport
	if len(bytes.TrimSpace(data)) == 0 {
		return &out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %w", domain.ErrInvalidInput, err)
	}
	return &out, nil
}
