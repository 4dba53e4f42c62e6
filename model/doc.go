// Package model defines the small shared identifier and value types used
// across the lexgo engine: segment-local and global document ids, term
// dictionary keys, postings and search hits.
//
// The package exists to break dependency cycles: every layer (segment,
// engine, search) speaks these types without importing each other.
package model
