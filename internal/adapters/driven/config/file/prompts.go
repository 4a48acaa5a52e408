package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptFeedbackPersona: `You are an experienced antimicrobial stewardship educator reviewing a learner's response to a clinical case.
Give specific, constructive feedback: acknowledge what the learner got right, correct what they got wrong, and explain the clinical reasoning behind each point.`,

	driven.PromptAntiFabrication: `Evidence rules:
- Cite only the numbered literature sources given below, using their bracketed numbers.
- Do not invent citations, authors, journals, years, trial names or statistics.
- If no literature evidence is supplied, say so plainly and do not include a references section.`,

	driven.PromptNoEvidence: `No supporting literature was retrieved for this response.
Tell the learner that your feedback is not backed by retrieved literature, base it on general stewardship principles only, and do not cite or list any references.`,

	driven.PromptFeedbackFormat: `Write feedback pitched at the {{difficulty}} level, structured as:
1. Strengths
2. Areas to improve
3. Key teaching points
When literature was supplied, reference it inline by number.`,

	driven.PromptMetadataExtraction: `Extract bibliographic metadata from the first page of a scientific paper.
Return ONLY a JSON object with these keys: "title", "authors" (array of "LastName Initials"), "journal", "year", "volume", "pages", "doi", "pmid".
Use an empty string or empty array for anything not present. Do not guess.

Filename: {{filename}}

First page:
{{text}}

JSON:`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.asp-agent/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".asp-agent", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Prompts

This directory contains the customisable prompts used by asp-agent.

## Files

- ` + "`feedback_persona.txt`" + ` - Educator persona opening every feedback prompt
- ` + "`anti_fabrication.txt`" + ` - Rules against citing anything not supplied
- ` + "`no_evidence.txt`" + ` - Disclosure used when no literature was retrieved
- ` + "`feedback_format.txt`" + ` - Response structure for feedback
- ` + "`metadata_extraction.txt`" + ` - JSON metadata extraction from a paper's first page

## Customisation

Edit any file to customise the model's behaviour. Changes take effect on the
next command or after restarting the server.

## Format Placeholders

Some prompts use named placeholders, replaced wherever they appear:
- ` + "`feedback_format.txt`" + ` - ` + "`{{difficulty}}`" + ` for the difficulty level
- ` + "`metadata_extraction.txt`" + ` - ` + "`{{filename}}`" + ` and ` + "`{{text}}`" + ` for the first-page text

Other text is passed to the model unchanged.
`
	return os.WriteFile(path, []byte(content), 0600)
}
