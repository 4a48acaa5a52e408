// Package normalisers provides DocumentReader implementations for the file
// formats accepted by ingestion. Each reader extracts the full text, the text
// of the first pages, and whatever bibliographic properties the format embeds.
//
// Readers are registered with the ReaderRegistry at startup.
package normalisers
