package query

import (
	"context"
	"strings"

	"query-insights/internal/domain"
)

var readStatementPrefixes = []string{"SELECT", "WITH", "FROM", "VALUES", "SHOW", "DESCRIBE", "EXPLAIN", "SUMMARIZE", "("}

// nativeController binds hand-written SQL. Its columns are purely inferred
// and it selects no tables.
type nativeController struct {
	doc  *domain.QueryDocument
	deps controllerDeps
}

var _ Controller = (*nativeController)(nil)

// Validate accepts an empty statement or a single read statement.
func (c *nativeController) Validate() error {
	sql := strings.TrimSpace(c.doc.SQL)
	if sql == "" {
		return nil
	}
	if statementCount(sql) > 1 {
		return domain.ErrValidation("native query must contain a single statement")
	}
	upper := strings.ToUpper(sql)
	for _, p := range readStatementPrefixes {
		if strings.HasPrefix(upper, p) {
			return nil
		}
	}
	return domain.ErrValidation("native query must be a read statement")
}

func (c *nativeController) GetSQL() (string, error) {
	return c.doc.SQL, nil
}

func (c *nativeController) GetColumns(ctx context.Context) ([]domain.ResultColumn, error) {
	results, err := cachedResults(ctx, c.deps)
	if err != nil {
		return nil, err
	}
	return c.GetColumnsFromResults(results), nil
}

func (c *nativeController) GetColumnsFromResults(results *domain.ResultSet) []domain.ResultColumn {
	return ColumnsFromResults(results, nil)
}

func (c *nativeController) GetTablesColumns(context.Context) ([]domain.TableColumn, error) {
	return []domain.TableColumn{}, nil
}

func (c *nativeController) GetSelectedTables() []domain.Table {
	return []domain.Table{}
}

func (c *nativeController) BeforeFetch() error { return nil }

func (c *nativeController) AfterFetchResults(results *domain.ResultSet) (*domain.ResultSet, error) {
	return results, nil
}

func (c *nativeController) AfterReset() {
	c.doc.IsNativeQuery = true
}

// statementCount counts semicolon-separated statements outside quotes and
// comments. A trailing semicolon does not start a new statement.
func statementCount(sql string) int {
	count := 0
	pending := false
	var quote rune
	lineComment := false
	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case lineComment:
			if r == '\n' {
				lineComment = false
			}
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			pending = true
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			lineComment = true
		case r == ';':
			if pending {
				count++
			}
			pending = false
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		default:
			pending = true
		}
	}
	if pending {
		count++
	}
	return count
}
