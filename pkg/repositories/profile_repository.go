package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/lakeprofiler/pkg/database"
	"github.com/ekaya-inc/lakeprofiler/pkg/models"
)

// ProfileRepository provides data access for persisted table profiles.
type ProfileRepository interface {
	// Upsert creates or updates a table profile keyed on catalog + schema +
	// table, replacing its column rows with rec.Columns in one transaction.
	Upsert(ctx context.Context, rec *models.TableProfileRecord) error

	// GetByReference retrieves the profile for a table, without column rows.
	// Returns nil when the table has never been profiled.
	GetByReference(ctx context.Context, ref models.TableReference) (*models.TableProfileRecord, error)

	// GetColumns retrieves the column rows of a profile in declared order.
	GetColumns(ctx context.Context, tableProfileID uuid.UUID) ([]models.ColumnProfileRecord, error)

	// ListByCatalog retrieves all profiles in a catalog, without column rows.
	ListByCatalog(ctx context.Context, catalog string) ([]*models.TableProfileRecord, error)
}

type profileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *database.DB) ProfileRepository {
	return &profileRepository{db: db}
}

var _ ProfileRepository = (*profileRepository)(nil)

func (r *profileRepository) Upsert(ctx context.Context, rec *models.TableProfileRecord) error {
	now := time.Now()
	if rec.ProfiledAt.IsZero() {
		rec.ProfiledAt = now
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	query := `
		INSERT INTO profiler_table_profiles (
			catalog, schema_name, table_name, display_name,
			num_rows, total_size_bytes, num_columns,
			profiled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (catalog, schema_name, table_name)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			num_rows = EXCLUDED.num_rows,
			total_size_bytes = EXCLUDED.total_size_bytes,
			num_columns = EXCLUDED.num_columns,
			profiled_at = EXCLUDED.profiled_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		rec.Catalog,
		rec.SchemaName,
		rec.TableName,
		rec.DisplayName,
		rec.NumRows,
		rec.TotalSizeBytes,
		rec.NumColumns,
		rec.ProfiledAt,
		now,
		now,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert table profile: %w", err)
	}

	// Column rows are replaced wholesale so stale columns from a previous
	// run never survive a refresh.
	_, err = tx.Exec(ctx, `DELETE FROM profiler_column_profiles WHERE table_profile_id = $1`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to clear column profiles: %w", err)
	}

	colQuery := `
		INSERT INTO profiler_column_profiles (
			table_profile_id, column_name, ordinal_position,
			null_count, distinct_count, min_value, max_value,
			avg_len, max_len, stats_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	for i := range rec.Columns {
		col := &rec.Columns[i]
		col.TableProfileID = rec.ID
		col.CreatedAt = now

		err = tx.QueryRow(ctx, colQuery,
			col.TableProfileID,
			col.ColumnName,
			col.OrdinalPosition,
			col.NullCount,
			col.DistinctCount,
			col.MinValue,
			col.MaxValue,
			col.AvgLen,
			col.MaxLen,
			col.StatsVersion,
			col.CreatedAt,
		).Scan(&col.ID)
		if err != nil {
			return fmt.Errorf("failed to insert column profile %q: %w", col.ColumnName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *profileRepository) GetByReference(ctx context.Context, ref models.TableReference) (*models.TableProfileRecord, error) {
	query := `
		SELECT id, catalog, schema_name, table_name, display_name,
		       num_rows, total_size_bytes, num_columns,
		       profiled_at, created_at, updated_at
		FROM profiler_table_profiles
		WHERE catalog = $1 AND schema_name = $2 AND table_name = $3`

	row := r.db.QueryRow(ctx, query, ref.Catalog, ref.Schema, ref.Table)
	return scanTableProfile(row)
}

func (r *profileRepository) GetColumns(ctx context.Context, tableProfileID uuid.UUID) ([]models.ColumnProfileRecord, error) {
	query := `
		SELECT id, table_profile_id, column_name, ordinal_position,
		       null_count, distinct_count, min_value, max_value,
		       avg_len, max_len, stats_version, created_at
		FROM profiler_column_profiles
		WHERE table_profile_id = $1
		ORDER BY ordinal_position`

	rows, err := r.db.Query(ctx, query, tableProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query column profiles: %w", err)
	}
	defer rows.Close()

	var result []models.ColumnProfileRecord
	for rows.Next() {
		var c models.ColumnProfileRecord

		err := rows.Scan(
			&c.ID, &c.TableProfileID, &c.ColumnName, &c.OrdinalPosition,
			&c.NullCount, &c.DistinctCount, &c.MinValue, &c.MaxValue,
			&c.AvgLen, &c.MaxLen, &c.StatsVersion, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column profile: %w", err)
		}

		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column profiles: %w", err)
	}

	return result, nil
}

func (r *profileRepository) ListByCatalog(ctx context.Context, catalog string) ([]*models.TableProfileRecord, error) {
	query := `
		SELECT id, catalog, schema_name, table_name, display_name,
		       num_rows, total_size_bytes, num_columns,
		       profiled_at, created_at, updated_at
		FROM profiler_table_profiles
		WHERE catalog = $1
		ORDER BY schema_name, table_name`

	rows, err := r.db.Query(ctx, query, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to query table profiles: %w", err)
	}
	defer rows.Close()

	var result []*models.TableProfileRecord
	for rows.Next() {
		var m models.TableProfileRecord

		err := rows.Scan(
			&m.ID, &m.Catalog, &m.SchemaName, &m.TableName, &m.DisplayName,
			&m.NumRows, &m.TotalSizeBytes, &m.NumColumns,
			&m.ProfiledAt, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table profile: %w", err)
		}

		result = append(result, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table profiles: %w", err)
	}

	return result, nil
}

func scanTableProfile(row pgx.Row) (*models.TableProfileRecord, error) {
	var m models.TableProfileRecord

	err := row.Scan(
		&m.ID, &m.Catalog, &m.SchemaName, &m.TableName, &m.DisplayName,
		&m.NumRows, &m.TotalSizeBytes, &m.NumColumns,
		&m.ProfiledAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan table profile: %w", err)
	}

	return &m, nil
}
