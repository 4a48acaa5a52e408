// Package domain defines the core business entities for the evidence
// retrieval and feedback pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - PaperMetadata: Bibliographic metadata for an ingested document
//   - Chunk: A fixed-size token window of a document with its vector
//   - ExpertCorrection / ExpertExemplar: Human-authored teaching material
//   - RetrievalResult / Evidence: Query-scoped retrieval output
//   - FeedbackRequest / FeedbackResponse: The feedback contract
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
