// Package connectors holds the document sources ingestion reads from.
// The filesystem connector is the only source: a directory of papers that is
// scanned, optionally watched, and drained into a processed sub-directory.
package connectors
