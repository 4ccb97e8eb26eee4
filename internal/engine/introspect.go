package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"query-insights/internal/domain"
)

// DescribeTables lists the physical tables of the data source with their
// columns mapped to semantic types.
func (s *SQLDataSource) DescribeTables(ctx context.Context) ([]domain.DataTable, error) {
	switch s.dialect {
	case DialectDuckDB:
		return s.describeDuckDB(ctx)
	case DialectSQLite:
		return s.describeSQLite(ctx)
	default:
		return nil, domain.ErrValidation("data source %q: unsupported dialect %q", s.name, s.dialect)
	}
}

func (s *SQLDataSource) describeDuckDB(ctx context.Context) ([]domain.DataTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return nil, fmt.Errorf("describe tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []domain.DataTable
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, err
		}
		if len(tables) == 0 || tables[len(tables)-1].Table != table {
			tables = append(tables, domain.DataTable{DataSource: s.name, Table: table, Label: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, domain.TableColumn{
			Column: column,
			Label:  column,
			Type:   SemanticType(dataType),
		})
	}
	return tables, rows.Err()
}

func (s *SQLDataSource) describeSQLite(ctx context.Context) ([]domain.DataTable, error) {
	names, err := s.sqliteTables(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]domain.DataTable, 0, len(names))
	for _, name := range names {
		cols, err := s.sqliteColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, domain.DataTable{DataSource: s.name, Table: name, Label: name, Columns: cols})
	}
	return tables, nil
}

func (s *SQLDataSource) sqliteTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("describe tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLDataSource) sqliteColumns(ctx context.Context, table string) ([]domain.TableColumn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.TableColumn
	for rows.Next() {
		var name string
		var dataType sql.NullString
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, err
		}
		cols = append(cols, domain.TableColumn{Column: name, Label: name, Type: SemanticType(dataType.String)})
	}
	return cols, rows.Err()
}

// SemanticType maps a database column type to a semantic column type.
// Unknown types map to String.
func SemanticType(dataType string) string {
	t := strings.ToUpper(strings.TrimSpace(dataType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "":
		return domain.TypeString
	case strings.HasPrefix(t, "TIMESTAMP"), t == "DATETIME":
		return domain.TypeDatetime
	case t == "DATE":
		return domain.TypeDate
	case strings.HasPrefix(t, "TIME"):
		return domain.TypeTime
	case t == "INTERVAL":
		return domain.TypeString
	case t == "TEXT", t == "CLOB":
		return domain.TypeText
	case strings.Contains(t, "INT"):
		return domain.TypeInteger
	case t == "DECIMAL", t == "NUMERIC", t == "DOUBLE", t == "FLOAT", t == "REAL",
		strings.HasPrefix(t, "FLOAT"), strings.HasPrefix(t, "DOUBLE"):
		return domain.TypeDecimal
	default:
		return domain.TypeString
	}
}
