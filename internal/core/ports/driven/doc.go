// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Generates vector embeddings for chunks and queries
//   - VectorStore: Named vector collections (literature, expert corrections, exemplars)
//   - DocumentReader: Reads source files into text plus embedded properties
//   - IngestionLedger: Records indexed documents, failures and collection models
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates for feedback and metadata extraction
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Language model generation. Without it, generative metadata
//     extraction and feedback generation are disabled.
//   - BibliographicSearch: External literature search. Without it, retrieval
//     stays local.
//   - FullTextFetcher: Open-access full text. Without it, external results
//     carry abstracts only.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
