package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"query-insights/internal/db/mapper"
	"query-insights/internal/domain"
)

var _ domain.TableMetadataStore = (*TableRepo)(nil)

// TableRepo stores data-source table metadata and its columns in SQLite.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo creates a new TableRepo.
func NewTableRepo(db *sql.DB) *TableRepo {
	return &TableRepo{db: db}
}

// CreateOrUpdateTable upserts a table by (data source, table name) and replaces
// its columns in one transaction.
func (r *TableRepo) CreateOrUpdateTable(ctx context.Context, t *domain.DataTable) (*domain.DataTable, error) {
	if t == nil || t.DataSource == "" || t.Table == "" {
		return nil, domain.ErrValidation("data source and table are required")
	}
	row := mapper.DataTableToDB(t)
	if row.ID == "" {
		row.ID = domain.NewID()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var tableID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO data_tables (id, data_source, table_name, label, is_query_based)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (data_source, table_name) DO UPDATE
		SET label = excluded.label, is_query_based = excluded.is_query_based, updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, row.ID, row.DataSource, row.TableName, row.Label, row.IsQueryBased).Scan(&tableID)
	if err != nil {
		return nil, mapDBError(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM data_table_columns WHERE table_id = ?`, tableID); err != nil {
		return nil, fmt.Errorf("clear columns: %w", err)
	}
	for _, c := range mapper.ColumnsToDB(t.Columns) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO data_table_columns (table_id, position, column_name, label, type)
			VALUES (?, ?, ?, ?, ?)
		`, tableID, c.Position, c.ColumnName, c.Label, c.Type)
		if err != nil {
			return nil, fmt.Errorf("insert column %s: %w", c.ColumnName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	out, err := r.GetTable(ctx, t.DataSource, t.Table)
	if err != nil {
		return nil, err
	}
	out.Columns, err = r.GetColumns(ctx, t.DataSource, t.Table)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTable returns a table without its columns.
func (r *TableRepo) GetTable(ctx context.Context, dataSource, table string) (*domain.DataTable, error) {
	var row mapper.DataTableRow
	err := r.db.QueryRowContext(ctx, `
		SELECT id, data_source, table_name, label, is_query_based, created_at, updated_at
		FROM data_tables
		WHERE data_source = ? AND table_name = ?
	`, dataSource, table).Scan(&row.ID, &row.DataSource, &row.TableName, &row.Label, &row.IsQueryBased,
		&row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("table %q not found in data source %q", table, dataSource)
		}
		return nil, err
	}
	return mapper.DataTableFromDB(row), nil
}

// GetColumns returns the stored columns of a table in position order. The
// table must exist; a table without columns yields an empty slice.
func (r *TableRepo) GetColumns(ctx context.Context, dataSource, table string) ([]domain.TableColumn, error) {
	t, err := r.GetTable(ctx, dataSource, table)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT position, column_name, label, type
		FROM data_table_columns
		WHERE table_id = ?
		ORDER BY position
	`, t.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	cols := []domain.TableColumn{}
	for rows.Next() {
		var c mapper.ColumnRow
		if err := rows.Scan(&c.Position, &c.ColumnName, &c.Label, &c.Type); err != nil {
			return nil, err
		}
		col := mapper.ColumnFromDB(c)
		col.DataSource = t.DataSource
		col.Table = t.Table
		col.TableLabel = t.Label
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// DeleteTable removes a table and, through the foreign key, its columns.
func (r *TableRepo) DeleteTable(ctx context.Context, dataSource, table string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_tables WHERE data_source = ? AND table_name = ?`, dataSource, table)
	if err != nil {
		return mapDBError(err)
	}
	return checkAffected(res, domain.ErrNotFound("table %q not found in data source %q", table, dataSource))
}

// ListTables returns every table registered for a data source, ordered by name.
func (r *TableRepo) ListTables(ctx context.Context, dataSource string) ([]domain.DataTable, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, data_source, table_name, label, is_query_based, created_at, updated_at
		FROM data_tables
		WHERE data_source = ?
		ORDER BY table_name
	`, dataSource)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	tables := []domain.DataTable{}
	for rows.Next() {
		var row mapper.DataTableRow
		if err := rows.Scan(&row.ID, &row.DataSource, &row.TableName, &row.Label, &row.IsQueryBased,
			&row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		tables = append(tables, *mapper.DataTableFromDB(row))
	}
	return tables, rows.Err()
}
