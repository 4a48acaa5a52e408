package driven

import "github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"

// ExpertSource loads expert corrections and exemplars from an import file.
type ExpertSource interface {
	// Load parses the file at path. The format is chosen by extension.
	Load(path string) (*domain.ExpertImport, error)
}
