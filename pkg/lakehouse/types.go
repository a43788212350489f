// Package lakehouse provides a client for the SQL-warehouse and catalog APIs
// of a remote analytical lakehouse, plus the capability interfaces the
// profiling pipeline consumes.
package lakehouse

// StatementState is the lifecycle state of a submitted statement, as reported
// by the remote system.
type StatementState string

const (
	StatePending   StatementState = "PENDING"
	StateRunning   StatementState = "RUNNING"
	StateSucceeded StatementState = "SUCCEEDED"
	StateFailed    StatementState = "FAILED"
	StateCanceled  StatementState = "CANCELED"
	StateClosed    StatementState = "CLOSED"
)

// IsTerminal reports whether no further transition occurs from s.
func (s StatementState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateClosed:
		return true
	}
	return false
}

// StatementError is the failure payload the remote system attaches to a
// statement status.
type StatementError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// StatementStatus is one observation of a statement's state. Error is set
// only when the remote system reports a failure.
type StatementStatus struct {
	State StatementState  `json:"state"`
	Error *StatementError `json:"error,omitempty"`
}

// StatementHandle identifies a submitted statement together with the status
// observed at submission time. The id is opaque; the status is only ever
// advanced by the remote system and re-observed via polling.
type StatementHandle struct {
	ID     string
	Status StatementStatus
}

// ColumnInfo is one declared column of a table.
type ColumnInfo struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name,omitempty"`
	Position int    `json:"position,omitempty"`
}

// TableInfo is the catalog metadata for a table: the declared column list
// plus the flat string property bag that statistics are read from.
type TableInfo struct {
	Name        string
	CatalogName string
	SchemaName  string
	Columns     []ColumnInfo
	Properties  map[string]string
}

// ColumnNames returns the declared column names in declaration order.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// WarehouseInfo describes a SQL warehouse (the compute endpoint statements
// run on).
type WarehouseInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}
