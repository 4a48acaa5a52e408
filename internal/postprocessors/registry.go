package postprocessors

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// BuilderFunc creates a PostProcessor from its [pipeline.<name>] config table.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Registry maps processor names to builders so the ingestion pipeline can
// be assembled from the pipeline.processors setting.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry. Call RegisterDefaults to add the
// built-in processors.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a builder. Name should match the processor's Name().
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Names returns the registered processor names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.builders))
}

// Build creates one processor. An unregistered name wraps domain.ErrInvalidInput.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q (available: %s)",
			domain.ErrInvalidInput, name, strings.Join(r.Names(), ", "))
	}
	return builder(cfg)
}

// BuildPipeline builds cfg.Processors in order, each with its own config
// table. A processor listed twice would re-split its own output, so
// duplicates are rejected.
func (r *Registry) BuildPipeline(cfg domain.PipelineConfig) (*Pipeline, error) {
	pipeline := NewPipeline()
	seen := make(map[string]bool, len(cfg.Processors))
	for _, name := range cfg.Processors {
		if seen[name] {
			return nil, fmt.Errorf("%w: processor %q listed twice", domain.ErrInvalidInput, name)
		}
		seen[name] = true

		p, err := r.Build(name, cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, fmt.Errorf("building processor %s: %w", name, err)
		}
		pipeline.Add(p)
	}
	return pipeline, nil
}
