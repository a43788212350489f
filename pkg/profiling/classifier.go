package profiling

import (
	"strings"

	"github.com/ekaya-inc/lakeprofiler/pkg/lakehouse"
)

// unsupportedColumnToken marks failures where the remote engine cannot
// compute statistics for a column's data type.
const unsupportedColumnToken = "[UNSUPPORTED_FEATURE.ANALYZE_UNSUPPORTED_COLUMN_TYPE]"

// GroupingKey derives a stable report key from a remote error message by
// truncating it just past the first backtick, or failing that the first
// single quote, or keeping the whole message. Messages like
// "Table `a.b.c` not found" and "Table `d.e.f` not found" both collapse to
// the "Table `" key while their full text is kept as samples.
func GroupingKey(message string) string {
	if idx := strings.Index(message, "`"); idx >= 0 {
		return message[:idx+1]
	}
	if idx := strings.Index(message, "'"); idx >= 0 {
		return message[:idx+1]
	}
	return message
}

// IsUnsupportedColumnType reports whether err signals that statistics are
// unavailable for a column's data type.
func IsUnsupportedColumnType(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), unsupportedColumnToken)
}

// remoteMessage returns the raw remote message when err carries one, falling
// back to the formatted error text. Grouping and report samples operate on
// the remote's own wording, not on local operation tags.
func remoteMessage(err error) string {
	if remote := lakehouse.AsError(err); remote != nil && remote.Message != "" {
		return remote.Message
	}
	return err.Error()
}
