// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants retrieve stewardship evidence and request grounded
// feedback on learner responses.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
