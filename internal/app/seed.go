package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// seedStatements create a small sales dataset for an empty in-memory DuckDB.
var seedStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		name VARCHAR NOT NULL,
		country VARCHAR NOT NULL,
		signed_up DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		status VARCHAR NOT NULL,
		amount DECIMAL(10,2) NOT NULL,
		ordered_at TIMESTAMP NOT NULL
	)`,
	`INSERT INTO customers VALUES
		(1, 'Acme Corp', 'NL', DATE '2024-01-15'),
		(2, 'Globex', 'DE', DATE '2024-02-03'),
		(3, 'Initech', 'US', DATE '2024-03-21'),
		(4, 'Umbrella', 'US', DATE '2024-05-09')`,
	`INSERT INTO orders VALUES
		(1, 1, 'shipped', 120.50, TIMESTAMP '2024-06-01 09:12:00'),
		(2, 1, 'shipped', 80.00, TIMESTAMP '2024-06-14 16:40:00'),
		(3, 2, 'pending', 42.10, TIMESTAMP '2024-07-02 11:05:00'),
		(4, 3, 'shipped', 310.00, TIMESTAMP '2024-07-19 08:30:00'),
		(5, 3, 'cancelled', 15.75, TIMESTAMP '2024-08-05 13:22:00'),
		(6, 4, 'shipped', 99.99, TIMESTAMP '2024-08-28 17:45:00')`,
}

// SeedDemoData populates the DuckDB source with demo tables. Idempotent:
// does nothing when the orders table already exists.
func SeedDemoData(ctx context.Context, duckDB *sql.DB, logger *slog.Logger) error {
	var n int
	err := duckDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = 'orders'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("check demo data: %w", err)
	}
	if n > 0 {
		return nil
	}

	for _, stmt := range seedStatements {
		if _, err := duckDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	logger.Info("demo data seeded", "tables", []string{"customers", "orders"})
	return nil
}
