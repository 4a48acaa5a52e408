// Package services implements the driving ports: document ingestion,
// hierarchical evidence retrieval, citation ranking and feedback generation
// over the language model fallback chain.
//
// Services depend only on driven port interfaces; every optional port may
// be nil and the service degrades instead of failing.
package services
