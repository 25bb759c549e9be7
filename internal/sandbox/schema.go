package sandbox

import (
	"context"
	"fmt"
)

const schemaQuery = `SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// TableSchema describes one table in the public schema.
type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

// DescribeSchema lists the tables and columns of the source database.
func (s *Sandbox) DescribeSchema(ctx context.Context, database string, callerID int) ([]TableSchema, error) {
	_, db, err := s.gate.Authorize(ctx, database, callerID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()

	res, err := s.engine.execute(ctx, schemaQuery, db.Name, true)
	if err != nil {
		return nil, err
	}
	return tablesFromRows(res.Rows)
}

func tablesFromRows(rows [][]any) ([]TableSchema, error) {
	tables := []TableSchema{}
	for _, row := range rows {
		if len(row) != 4 {
			return nil, fmt.Errorf("schema row has %d columns, want 4", len(row))
		}
		table := fmt.Sprint(row[0])
		col := ColumnSchema{
			Name:     fmt.Sprint(row[1]),
			Type:     fmt.Sprint(row[2]),
			Nullable: fmt.Sprint(row[3]) == "YES",
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, TableSchema{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, col)
	}
	return tables, nil
}
