// Package sql renders the statements the profiler submits to the remote
// system.
package sql

import (
	"fmt"
	"strings"
)

// BuildAnalyzeTable renders the statistics-computation statement for a
// schema-qualified table. The catalog scope is supplied out-of-band at
// execution time. With includeColumns the remote system also computes
// per-column statistics.
//
// Identifiers cannot be bound as statement parameters, so they are screened
// for injection patterns and backtick-quoted before interpolation.
func BuildAnalyzeTable(schema, table string, includeColumns bool) (string, error) {
	for _, ident := range []string{schema, table} {
		if ident == "" {
			return "", fmt.Errorf("empty identifier in table reference %q.%q", schema, table)
		}
		if result := CheckIdentifierForInjection(ident); result != nil {
			return "", fmt.Errorf("identifier %q rejected: injection pattern (fingerprint %s)", ident, result.Fingerprint)
		}
	}

	stmt := fmt.Sprintf("ANALYZE TABLE %s.%s COMPUTE STATISTICS", QuoteIdentifier(schema), QuoteIdentifier(table))
	if includeColumns {
		stmt += " FOR ALL COLUMNS"
	}
	return stmt, nil
}

// QuoteIdentifier wraps an identifier in backticks, doubling any embedded
// backtick.
func QuoteIdentifier(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}
