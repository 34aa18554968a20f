package db

import (
	"strconv"
	"strings"
)

// dialect isolates the syntactic differences between engines so the query
// layer in store.go stays singular. Queries are written once with ?
// placeholders and translated per engine.
type dialect interface {
	// name identifies the engine in logs and health output.
	name() string
	// rebind translates ? placeholders into the engine's syntax.
	rebind(query string) string
	// useReturning reports whether inserts must fetch auto-assigned IDs via
	// a RETURNING clause instead of LastInsertId.
	useReturning() bool
	// sinceDays returns a predicate fragment matching rows of column newer
	// than ? days ago, in the engine's date arithmetic.
	sinceDays(column string) string
}

// rebindPositional rewrites ? placeholders as $1..$N for engines that use
// positional parameters. Queries in this package carry no string literals
// containing '?', so no quote tracking is needed.
func rebindPositional(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
