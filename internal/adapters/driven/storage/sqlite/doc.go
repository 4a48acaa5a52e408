// Package sqlite provides the SQLite-backed ingestion ledger.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. The ledger records:
//
//   - documents: every indexed document with its metadata and chunk count
//   - ingestion_failures: the latest failure per input path
//   - collections: the embedding model each vector collection was built with
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.asp-agent/data/ledger.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
