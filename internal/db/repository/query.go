package repository

import (
	"context"
	"database/sql"
	"errors"

	"query-insights/internal/db/mapper"
	"query-insights/internal/domain"
)

var _ domain.QueryRepository = (*QueryRepo)(nil)

const queryColumns = `id, name, title, data_source, is_assisted_query, is_native_query, sql, json,
		tables, columns, filters, row_limit, transforms, status, execution_time, last_execution,
		results_row_count, created_at, updated_at`

// QueryRepo stores query documents in SQLite.
type QueryRepo struct {
	db *sql.DB
}

// NewQueryRepo creates a new QueryRepo.
func NewQueryRepo(db *sql.DB) *QueryRepo {
	return &QueryRepo{db: db}
}

// Create inserts a query document. A missing ID or name is generated.
func (r *QueryRepo) Create(ctx context.Context, doc *domain.QueryDocument) (*domain.QueryDocument, error) {
	if doc == nil {
		return nil, domain.ErrValidation("query document is required")
	}
	if doc.ID == "" {
		doc.ID = domain.NewID()
	}
	if doc.Name == "" {
		doc.Name = domain.NewQueryName()
	}
	row, err := mapper.QueryToDB(doc)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO queries (id, name, title, data_source, is_assisted_query, is_native_query, sql, json,
		                     tables, columns, filters, row_limit, transforms, status, execution_time,
		                     last_execution, results_row_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.ID, row.Name, row.Title, row.DataSource, row.IsAssistedQuery, row.IsNativeQuery, row.SQL, row.JSON,
		row.Tables, row.Columns, row.Filters, row.RowLimit, row.Transforms, row.Status, row.ExecutionTime,
		row.LastExecution, row.ResultsRowCount)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(mapDBError(err), &conflict) {
			return nil, domain.ErrConflict("query %q already exists", doc.Name)
		}
		return nil, err
	}

	return r.GetByID(ctx, doc.ID)
}

// GetByID returns a query document by ID.
func (r *QueryRepo) GetByID(ctx context.Context, id string) (*domain.QueryDocument, error) {
	doc, err := scanQuery(r.db.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("query %q not found", id)
		}
		return nil, err
	}
	return doc, nil
}

// List returns a page of query documents, newest first, and the total count.
func (r *QueryRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.QueryDocument, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM queries`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+queryColumns+`
		FROM queries
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	docs := make([]domain.QueryDocument, 0, page.Limit())
	for rows.Next() {
		doc, err := scanQuery(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Update overwrites every mutable field of a stored document.
func (r *QueryRepo) Update(ctx context.Context, doc *domain.QueryDocument) (*domain.QueryDocument, error) {
	row, err := mapper.QueryToDB(doc)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE queries
		SET title = ?, data_source = ?, is_assisted_query = ?, is_native_query = ?, sql = ?, json = ?,
		    tables = ?, columns = ?, filters = ?, row_limit = ?, transforms = ?, status = ?,
		    execution_time = ?, last_execution = ?, results_row_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, row.Title, row.DataSource, row.IsAssistedQuery, row.IsNativeQuery, row.SQL, row.JSON,
		row.Tables, row.Columns, row.Filters, row.RowLimit, row.Transforms, row.Status,
		row.ExecutionTime, row.LastExecution, row.ResultsRowCount, row.ID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := checkAffected(res, domain.ErrNotFound("query %q not found", doc.ID)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, doc.ID)
}

// Delete removes a query document.
func (r *QueryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queries WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return checkAffected(res, domain.ErrNotFound("query %q not found", id))
}

func scanQuery(s rowScanner) (*domain.QueryDocument, error) {
	var row mapper.QueryRow
	err := s.Scan(&row.ID, &row.Name, &row.Title, &row.DataSource, &row.IsAssistedQuery, &row.IsNativeQuery,
		&row.SQL, &row.JSON, &row.Tables, &row.Columns, &row.Filters, &row.RowLimit, &row.Transforms,
		&row.Status, &row.ExecutionTime, &row.LastExecution, &row.ResultsRowCount, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return mapper.QueryFromDB(row)
}
