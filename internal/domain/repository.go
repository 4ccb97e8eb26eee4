package domain

import "context"

// QueryRepository persists query documents.
type QueryRepository interface {
	Create(ctx context.Context, doc *QueryDocument) (*QueryDocument, error)
	GetByID(ctx context.Context, id string) (*QueryDocument, error)
	List(ctx context.Context, page PageRequest) ([]QueryDocument, int64, error)
	Update(ctx context.Context, doc *QueryDocument) (*QueryDocument, error)
	Delete(ctx context.Context, id string) error
}

// TableMetadataStore persists table and column metadata per data source.
type TableMetadataStore interface {
	// CreateOrUpdateTable upserts a table by (data source, table) and replaces its columns.
	CreateOrUpdateTable(ctx context.Context, t *DataTable) (*DataTable, error)
	// GetColumns returns the stored columns of a table in position order.
	GetColumns(ctx context.Context, dataSource, table string) ([]TableColumn, error)
	// GetTable returns a table without its columns.
	GetTable(ctx context.Context, dataSource, table string) (*DataTable, error)
	// DeleteTable removes a table and its columns.
	DeleteTable(ctx context.Context, dataSource, table string) error
}
