package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/pinax-network/ibd-bench-sql/bench"
)

// sqliteDialect targets modernc.org/sqlite, the table lives in the file's main schema.
type sqliteDialect struct{}

func (d sqliteDialect) Name() string {
	return "sqlite"
}

func (d sqliteDialect) EscapeIdentifier(name string) string {
	return EscapeIdentifier(name)
}

func (d sqliteDialect) TableIdentifier(_ string, table string) string {
	return EscapeIdentifier(table)
}

func (d sqliteDialect) ColumnType(kind bench.ColumnKind) string {
	switch kind {
	case bench.ColumnKindTimestamp:
		return "TEXT"
	case bench.ColumnKindUint:
		return "INTEGER"
	case bench.ColumnKindFloat:
		return "REAL"
	}
	panic(fmt.Errorf("unsupported column kind %s", kind))
}

func (d sqliteDialect) GetCreateTableQuery(schema string, table string, columns []*ColumnInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n%s\n);\n", d.TableIdentifier(schema, table), createTableColumns(columns))
	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s (%s);\n",
		EscapeIdentifier(table+"_height_idx"),
		d.TableIdentifier(schema, table),
		EscapeIdentifier("height"),
	)
	return b.String()
}

func (d sqliteDialect) ExecuteSetupScript(ctx context.Context, l *Loader, script string) error {
	return execStatements(ctx, l, splitStatements(script))
}

func (d sqliteDialect) Flush(tx Tx, ctx context.Context, l *Loader, rows []*bench.BlockMetrics) (int, error) {
	if _, err := tx.ExecContext(ctx, literalInsertQuery(l, rows)); err != nil {
		return 0, fmt.Errorf("insert %d rows: %w", len(rows), err)
	}
	return len(rows), nil
}

func (d sqliteDialect) TableColumns(ctx context.Context, l *Loader) (map[string]string, error) {
	rows, err := l.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", l.table)
	if err != nil {
		return nil, fmt.Errorf("query table info: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, columnType string
		if err := rows.Scan(&name, &columnType); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		out[name] = columnType
	}
	return out, rows.Err()
}
