package search

import (
	"fmt"
)

// QueryTooBroadError reports a Range, Prefix or Wildcard query whose
// dictionary expansion exceeded the configured ceiling. Narrow the
// query or raise the ceiling with WithMaxExpansion.
type QueryTooBroadError struct {
	Query string
	Terms int
	Limit int
}

func (e *QueryTooBroadError) Error() string {
	return fmt.Sprintf("query %s expands past %d terms (limit %d)", e.Query, e.Terms, e.Limit)
}
