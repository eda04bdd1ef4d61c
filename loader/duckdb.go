package loader

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2" // load duckdb driver

	"github.com/metrico/tablepipe/model"
)

// ConnectDuckDB opens a DuckDB database, in memory for an empty path.
func ConnectDuckDB(filePath string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to DuckDB: %w", err)
	}
	return db, nil
}

// LoadSQL runs query against the DuckDB database at dsn and returns one row
// per result row, keyed by column name.
func LoadSQL(ctx context.Context, dsn, query string) ([]model.Row, error) {
	if query == "" {
		return nil, fmt.Errorf("sql source %q has no query", dsn)
	}
	db, err := ConnectDuckDB(dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]model.Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var res []model.Row
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(model.MapRow, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		res = append(res, row)
	}
	return res, rows.Err()
}
