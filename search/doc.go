// Package search compiles query trees into lazy matcher cursors over a
// reader snapshot and collects the top-K results by BM25 relevance.
//
// Queries are composable values (Term, Phrase, And, Or, AndNot, Range,
// Prefix, Wildcard, Every, Boost). Multi-term queries are expanded
// against the term dictionary at compile time, bounded by an expansion
// ceiling. Matching streams documents in ascending id order and scores
// only the documents that survive the full boolean structure; segments
// are searched in parallel and their partial top-K sets merged
// deterministically.
package search
