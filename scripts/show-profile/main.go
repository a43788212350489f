// show-profile prints the stored statistics snapshot for one profiled table.
//
// Usage: go run ./scripts/show-profile [-columns=false] <catalog.schema.table>
//
// Database connection: Uses standard PG* environment variables
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
)

// storedProfile is the YAML shape printed for operators.
type storedProfile struct {
	Table          string         `yaml:"table"`
	DisplayName    string         `yaml:"display_name,omitempty"`
	NumRows        *int64         `yaml:"num_rows,omitempty"`
	TotalSizeBytes *int64         `yaml:"total_size_bytes,omitempty"`
	NumColumns     int            `yaml:"num_columns"`
	ProfiledAt     string         `yaml:"profiled_at"`
	Columns        []storedColumn `yaml:"columns,omitempty"`
}

type storedColumn struct {
	Name          string  `yaml:"name"`
	NullCount     *int64  `yaml:"null_count,omitempty"`
	DistinctCount *int64  `yaml:"distinct_count,omitempty"`
	Min           *string `yaml:"min,omitempty"`
	Max           *string `yaml:"max,omitempty"`
	AvgLen        *string `yaml:"avg_len,omitempty"`
	MaxLen        *string `yaml:"max_len,omitempty"`
	StatsVersion  *string `yaml:"stats_version,omitempty"`
}

func main() {
	withColumns := flag.Bool("columns", true, "Include per-column statistics")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-columns=false] <catalog.schema.table>\n", os.Args[0])
		os.Exit(1)
	}

	parts := strings.Split(args[0], ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		fmt.Fprintf(os.Stderr, "Invalid table name %q: want catalog.schema.table\n", args[0])
		os.Exit(1)
	}

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	profile, profileID, err := fetchProfile(ctx, conn, parts[0], parts[1], parts[2])
	if errors.Is(err, pgx.ErrNoRows) {
		fmt.Fprintf(os.Stderr, "No profile stored for %s\n", args[0])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read profile: %v\n", err)
		os.Exit(1)
	}

	if *withColumns {
		columns, err := fetchColumns(ctx, conn, profileID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read column profiles: %v\n", err)
			os.Exit(1)
		}
		profile.Columns = columns
	}

	out, err := yaml.Marshal(profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render profile: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
}

func fetchProfile(ctx context.Context, conn *pgx.Conn, catalog, schema, table string) (*storedProfile, string, error) {
	var (
		id         string
		profiledAt time.Time
	)
	profile := &storedProfile{
		Table: fmt.Sprintf("%s.%s.%s", catalog, schema, table),
	}

	err := conn.QueryRow(ctx, `
		SELECT id::text, display_name, num_rows, total_size_bytes, num_columns, profiled_at
		FROM profiler_table_profiles
		WHERE catalog = $1 AND schema_name = $2 AND table_name = $3
	`, catalog, schema, table).Scan(
		&id,
		&profile.DisplayName,
		&profile.NumRows,
		&profile.TotalSizeBytes,
		&profile.NumColumns,
		&profiledAt,
	)
	if err != nil {
		return nil, "", err
	}

	profile.ProfiledAt = profiledAt.Format(time.RFC3339)
	return profile, id, nil
}

func fetchColumns(ctx context.Context, conn *pgx.Conn, profileID string) ([]storedColumn, error) {
	rows, err := conn.Query(ctx, `
		SELECT column_name, null_count, distinct_count, min_value, max_value,
		       avg_len, max_len, stats_version
		FROM profiler_column_profiles
		WHERE table_profile_id = $1
		ORDER BY ordinal_position
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var columns []storedColumn
	for rows.Next() {
		var c storedColumn
		if err := rows.Scan(&c.Name, &c.NullCount, &c.DistinctCount, &c.Min, &c.Max,
			&c.AvgLen, &c.MaxLen, &c.StatsVersion); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return columns, nil
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "profiler")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "lakeprofiler")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
