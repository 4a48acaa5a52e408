package file

import (
	"fmt"
	"strings"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// settingCheck reports why a value is unusable for its key.
type settingCheck func(value any) error

// settingChecks covers the keys asp-agent reads with a type or range
// constraint. Other keys, including free-form strings such as models and
// API keys, are stored as given.
var settingChecks = map[string]settingCheck{
	"embedding.provider":          isProvider,
	"embedding.batch_size":        intBetween(1, 2048),
	"llm.backends":                isProviderList,
	"llm.timeout":                 isDuration,
	"llm.max_retries":             intBetween(0, 2),
	"retrieval.min_similarity":    floatBetween(0, 1),
	"retrieval.max_results":       intBetween(1, 100),
	"retrieval.external_enabled":  isBool,
	"retrieval.fulltext_top_n":    intBetween(0, 20),
	"retrieval.timeout":           isDuration,
	"retrieval.max_retries":       intBetween(0, 2),
	"ingestion.move_processed":    isBool,
	"expert.max_corrections":      intBetween(0, 50),
	"expert.max_exemplars":        intBetween(0, 50),
	"pipeline.processors":         isStringList,
	"pipeline.chunker.chunk_size": intBetween(1, 65536),
	"pipeline.chunker.overlap":    intBetween(0, 65535),
}

func validateSetting(key string, value any) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: malformed config key %q", domain.ErrInvalidInput, key)
	}
	check, ok := settingChecks[key]
	if !ok {
		return nil
	}
	if err := check(value); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return nil
}

func intBetween(lo, hi int) settingCheck {
	return func(value any) error {
		n, ok := asInt(value)
		if !ok {
			return fmt.Errorf("want an integer, got %T", value)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%d is outside %d..%d", n, lo, hi)
		}
		return nil
	}
}

func floatBetween(lo, hi float64) settingCheck {
	return func(value any) error {
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("want a number, got %T", value)
		}
		if f < lo || f > hi {
			return fmt.Errorf("%g is outside %g..%g", f, lo, hi)
		}
		return nil
	}
}

func isBool(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("want true or false, got %T", value)
	}
	return nil
}

func isDuration(value any) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("want a duration string such as \"30s\", got %T", value)
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("duration %s must be positive", str)
	}
	return nil
}

func isProvider(value any) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("want a provider name, got %T", value)
	}
	if !domain.AIProvider(str).IsValid() {
		return fmt.Errorf("unknown provider %q", str)
	}
	return nil
}

func isStringList(value any) error {
	if _, ok := asStrings(value); !ok {
		return fmt.Errorf("want a list of names, got %T", value)
	}
	return nil
}

func isProviderList(value any) error {
	names, ok := asStrings(value)
	if !ok {
		return fmt.Errorf("want a list of provider names, got %T", value)
	}
	for _, name := range names {
		if err := isProvider(name); err != nil {
			return err
		}
	}
	return nil
}

// asInt accepts Go ints and the int64 TOML decodes to.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// asFloat accepts floats and integers.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		n, ok := asInt(value)
		return float64(n), ok
	}
}

// asStrings accepts []string and the []any TOML decodes arrays to, as long
// as every element is a string.
func asStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}
