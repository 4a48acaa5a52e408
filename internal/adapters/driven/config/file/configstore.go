package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps asp-agent settings in a TOML file with one table per
// section ([embedding], [retrieval], [llm.ollama], ...). Values are held in
// memory under dotted keys and every known key is range-checked on load and
// on Set.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
}

// NewConfigStore opens configDir/config.toml, creating the directory if
// needed. If configDir is empty, defaults to ~/.asp-agent.
// A file holding an out-of-range value is reported instead of silently
// falling back to defaults.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".asp-agent")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		data:     make(map[string]any),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("%s: %w", s.filePath, err)
	}
	return s, nil
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) string {
	val, _ := s.Get(key)
	str, _ := val.(string)
	return str
}

// GetInt retrieves an integer configuration value.
func (s *ConfigStore) GetInt(key string) int {
	val, _ := s.Get(key)
	n, _ := asInt(val)
	return n
}

// GetFloat retrieves a numeric configuration value.
func (s *ConfigStore) GetFloat(key string) (float64, bool) {
	val, _ := s.Get(key)
	return asFloat(val)
}

// GetBool retrieves a boolean configuration value.
func (s *ConfigStore) GetBool(key string) bool {
	val, _ := s.Get(key)
	b, _ := val.(bool)
	return b
}

// GetStringSlice retrieves a string list configuration value.
func (s *ConfigStore) GetStringSlice(key string) []string {
	val, _ := s.Get(key)
	list, _ := asStrings(val)
	return list
}

// Set validates and stores a value, then rewrites the file.
// The in-memory value is rolled back when the write fails.
func (s *ConfigStore) Set(key string, value any) error {
	if err := validateSetting(key, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	s.data[key] = value
	if err := s.save(); err != nil {
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// save writes the sections to disk (caller must hold lock).
func (s *ConfigStore) save() error {
	tree, err := nestKeys(s.data)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(tree)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// load replaces the in-memory values with the file's. A missing file is an
// empty configuration.
func (s *ConfigStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return err
	}

	flat := make(map[string]any)
	flattenKeys(tree, "", flat)
	for key, value := range flat {
		if err := validateSetting(key, value); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.data = flat
	s.mu.Unlock()
	return nil
}

// flattenKeys turns {"retrieval": {"max_results": 5}} into
// {"retrieval.max_results": 5}.
func flattenKeys(tree map[string]any, prefix string, out map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenKeys(nested, key, out)
			continue
		}
		out[key] = value
	}
}

// nestKeys is the inverse of flattenKeys. A key that is both a value and a
// section, such as "llm" next to "llm.backends", cannot be written as TOML.
func nestKeys(flat map[string]any) (map[string]any, error) {
	tree := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		node := tree
		for i, part := range parts[:len(parts)-1] {
			switch next := node[part].(type) {
			case nil:
				child := make(map[string]any)
				node[part] = child
				node = child
			case map[string]any:
				node = next
			default:
				return nil, fmt.Errorf("%w: %s is a value, not a section", domain.ErrInvalidInput,
					strings.Join(parts[:i+1], "."))
			}
		}
		leaf := parts[len(parts)-1]
		if _, isSection := node[leaf].(map[string]any); isSection {
			return nil, fmt.Errorf("%w: %s is a section, not a value", domain.ErrInvalidInput, key)
		}
		node[leaf] = value
	}
	return tree, nil
}
