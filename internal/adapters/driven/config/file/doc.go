// Package file keeps user-editable configuration on the local filesystem.
//
// Adapters:
//   - ConfigStore: config.toml with one table per settings section, range-checked on load
//   - PromptStore: prompt templates with named placeholders
package file
