package lakehouse

import "context"

// StatementExecutor submits statements for asynchronous execution and polls
// their status by id.
type StatementExecutor interface {
	// ExecuteStatement submits sql against the given warehouse with the
	// catalog supplied out-of-band. Submission is non-blocking: the returned
	// handle carries whatever status the remote system reported at accept
	// time, which may already be terminal.
	ExecuteStatement(ctx context.Context, sql, catalog, warehouseID string) (*StatementHandle, error)

	// GetStatement fetches the current status of a previously submitted
	// statement.
	GetStatement(ctx context.Context, statementID string) (StatementStatus, error)
}

// TableReader fetches table metadata by fully-qualified
// "catalog.schema.table" name.
type TableReader interface {
	GetTable(ctx context.Context, fullName string) (*TableInfo, error)
}

// WarehouseReader looks up and starts SQL warehouses.
type WarehouseReader interface {
	GetWarehouse(ctx context.Context, warehouseID string) (*WarehouseInfo, error)
	StartWarehouse(ctx context.Context, warehouseID string) error
}
