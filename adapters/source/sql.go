package source

import (
	"context"
	"strings"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/ports"

	"github.com/jmoiron/sqlx"
)

// SQLSource runs the request query against a database and serves the
// result set as a single batch.
type SQLSource struct {
	db                  *sqlx.DB
	requiredIdentifiers []string
}

// NewSQLSource creates a SQL-backed source
func NewSQLSource(db *sqlx.DB, requiredIdentifiers ...string) *SQLSource {
	return &SQLSource{db: db, requiredIdentifiers: requiredIdentifiers}
}

func (s *SQLSource) Kind() batch.SourceKind { return batch.SourceQuery }

func (s *SQLSource) RequiredIdentifiers() []string { return s.requiredIdentifiers }

func (s *SQLSource) Read(ctx context.Context, req batch.Request) ([]ports.ResolvedData, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, core.NewBatchSpecError("query request carries no query")
	}

	rows, err := s.db.QueryxContext(ctx, req.Query)
	if err != nil {
		return nil, core.NewDataUnavailableError("query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, core.NewDataUnavailableError("query", err)
	}

	table := batch.Table{Columns: columns}
	for rows.Next() {
		cells, err := rows.SliceScan()
		if err != nil {
			return nil, core.NewDataUnavailableError("query", err)
		}
		row := make([]interface{}, len(cells))
		for i, cell := range cells {
			row[i] = normalizeSQLValue(cell)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewDataUnavailableError("query", err)
	}

	return []ports.ResolvedData{{Table: table}}, nil
}

// normalizeSQLValue flattens driver types into the cell types the metric
// engine understands.
func normalizeSQLValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int32:
		return int64(x)
	default:
		return x
	}
}
