package driven

// ConfigStore holds asp-agent settings addressed by dotted keys such as
// "retrieval.min_similarity" or "llm.ollama.model". The segment before the
// last dot names the section the value is persisted under.
type ConfigStore interface {
	// Get retrieves a value by key and reports whether it exists.
	Get(key string) (any, bool)

	// GetString returns "" when the key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 when the key is missing or not an integer.
	GetInt(key string) int

	// GetFloat reports false when the key is missing or not a number.
	// Integers are widened so "min_similarity = 1" reads as 1.0.
	GetFloat(key string) (float64, bool)

	// GetBool returns false when the key is missing or not a boolean.
	GetBool(key string) bool

	// GetStringSlice returns nil when the key is missing or not a list.
	GetStringSlice(key string) []string

	// Set stores a value and persists it immediately.
	// Values outside a known key's range are rejected with domain.ErrInvalidInput.
	Set(key string, value any) error

	// Path returns where the configuration is persisted.
	Path() string
}
