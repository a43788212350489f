package profiling

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/lakeprofiler/pkg/lakehouse"
)

func TestGroupingKey(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "backtick delimiter",
			message: "Table `a.b.c` not found",
			want:    "Table `",
		},
		{
			name:    "single quote delimiter",
			message: "Schema 'sales' does not exist",
			want:    "Schema '",
		},
		{
			name:    "backtick wins over an earlier quote",
			message: "Can't resolve `orders`",
			want:    "Can't resolve `",
		},
		{
			name:    "no delimiter keeps whole message",
			message: "INTERNAL_ERROR: something broke",
			want:    "INTERNAL_ERROR: something broke",
		},
		{
			name:    "leading backtick",
			message: "`orders` is corrupt",
			want:    "`",
		},
		{
			name:    "empty message",
			message: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GroupingKey(tt.message))
		})
	}
}

func TestGroupingKey_SameClassSharesKey(t *testing.T) {
	a := GroupingKey("Table `a.b.c` not found")
	b := GroupingKey("Table `d.e.f` not found")
	assert.Equal(t, a, b)
}

func TestIsUnsupportedColumnType(t *testing.T) {
	unsupported := &lakehouse.Error{
		Op:      "get-statement",
		State:   lakehouse.StateFailed,
		Code:    "UNSUPPORTED_FEATURE",
		Message: "Column `geo` has type MAP which is unsupported [UNSUPPORTED_FEATURE.ANALYZE_UNSUPPORTED_COLUMN_TYPE]",
	}

	assert.True(t, IsUnsupportedColumnType(unsupported))
	assert.True(t, IsUnsupportedColumnType(fmt.Errorf("profiling: %w", unsupported)))
	assert.False(t, IsUnsupportedColumnType(errors.New("Table `a.b.c` not found")))
	assert.False(t, IsUnsupportedColumnType(nil))
}

func TestRemoteMessage(t *testing.T) {
	remote := &lakehouse.Error{
		Op:      "get-table",
		Code:    "TABLE_DOES_NOT_EXIST",
		Message: "Table `a.b.c` not found",
	}

	assert.Equal(t, "Table `a.b.c` not found", remoteMessage(remote))
	assert.Equal(t, "Table `a.b.c` not found", remoteMessage(fmt.Errorf("wrapped: %w", remote)))
	assert.Equal(t, "plain failure", remoteMessage(errors.New("plain failure")))
}
