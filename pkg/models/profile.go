package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
)

// TableReference identifies a table by its position in the catalog hierarchy.
// Immutable value supplied by the caller.
type TableReference struct {
	Catalog string `json:"catalog"`
	Schema  string `json:"schema"`
	Table   string `json:"table"`
}

// ParseTableReference parses a "catalog.schema.table" string.
func ParseTableReference(name string) (TableReference, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 3 {
		return TableReference{}, fmt.Errorf("table reference %q: want catalog.schema.table", name)
	}
	for _, p := range parts {
		if p == "" {
			return TableReference{}, fmt.Errorf("table reference %q: empty segment", name)
		}
	}
	return TableReference{Catalog: parts[0], Schema: parts[1], Table: parts[2]}, nil
}

// Qualified returns the fully-qualified "catalog.schema.table" name.
func (r TableReference) Qualified() string {
	return fmt.Sprintf("%s.%s.%s", r.Catalog, r.Schema, r.Table)
}

// SchemaQualified returns "schema.table", the scope used in statements that
// carry the catalog out-of-band.
func (r TableReference) SchemaQualified() string {
	return fmt.Sprintf("%s.%s", r.Schema, r.Table)
}

// DisplayName derives a human-readable singular name from the table name
// (e.g. "order_items" -> "Order_item").
func (r TableReference) DisplayName() string {
	name := inflection.Singular(r.Table)
	if len(name) > 0 {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return name
}

func (r TableReference) String() string {
	return r.Qualified()
}

// ColumnProfile holds per-column statistics extracted from the table property
// bag. All statistic fields are optional: the source bag may omit or corrupt
// any of them. Min/Max and the length fields keep the remote system's own
// formatting verbatim.
type ColumnProfile struct {
	Name          string  `json:"name"`
	NullCount     *int64  `json:"null_count,omitempty"`
	DistinctCount *int64  `json:"distinct_count,omitempty"`
	Min           *string `json:"min,omitempty"`
	Max           *string `json:"max,omitempty"`
	AvgLen        *string `json:"avg_len,omitempty"`
	MaxLen        *string `json:"max_len,omitempty"`
	Version       *string `json:"version,omitempty"`
}

// TableProfile is the result of one successful profiling call. Immutable
// after construction. ColumnProfiles preserves the declared column order and
// is empty when column statistics were not requested.
type TableProfile struct {
	NumRows        *int64          `json:"num_rows,omitempty"`
	TotalSize      *int64          `json:"total_size,omitempty"`
	NumColumns     int             `json:"num_columns"`
	ColumnProfiles []ColumnProfile `json:"column_profiles,omitempty"`
}

// TableProfileRecord is the persisted shape of a TableProfile.
type TableProfileRecord struct {
	ID             uuid.UUID `json:"id"`
	Catalog        string    `json:"catalog"`
	SchemaName     string    `json:"schema_name"`
	TableName      string    `json:"table_name"`
	DisplayName    string    `json:"display_name"`
	NumRows        *int64    `json:"num_rows,omitempty"`
	TotalSizeBytes *int64    `json:"total_size_bytes,omitempty"`
	NumColumns     int       `json:"num_columns"`
	ProfiledAt     time.Time `json:"profiled_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Columns []ColumnProfileRecord `json:"columns,omitempty"` // populated on demand
}

// Reference reconstructs the TableReference this record was profiled under.
func (r *TableProfileRecord) Reference() TableReference {
	return TableReference{Catalog: r.Catalog, Schema: r.SchemaName, Table: r.TableName}
}

// ColumnProfileRecord is the persisted shape of a ColumnProfile. Column rows
// are replaced wholesale on each refresh, so they carry no UpdatedAt.
type ColumnProfileRecord struct {
	ID              uuid.UUID `json:"id"`
	TableProfileID  uuid.UUID `json:"table_profile_id"`
	ColumnName      string    `json:"column_name"`
	OrdinalPosition int       `json:"ordinal_position"`
	NullCount       *int64    `json:"null_count,omitempty"`
	DistinctCount   *int64    `json:"distinct_count,omitempty"`
	MinValue        *string   `json:"min_value,omitempty"`
	MaxValue        *string   `json:"max_value,omitempty"`
	AvgLen          *string   `json:"avg_len,omitempty"`
	MaxLen          *string   `json:"max_len,omitempty"`
	StatsVersion    *string   `json:"stats_version,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
