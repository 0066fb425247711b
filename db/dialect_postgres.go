package db

import (
	"context"
	"fmt"

	"github.com/lithammer/dedent"
	"github.com/pinax-network/ibd-bench-sql/bench"
	"go.uber.org/zap"
)

type postgresDialect struct{}

func (d postgresDialect) Name() string {
	return "postgres"
}

func (d postgresDialect) EscapeIdentifier(name string) string {
	return EscapeIdentifier(name)
}

func (d postgresDialect) TableIdentifier(schema string, table string) string {
	return fmt.Sprintf("%s.%s", EscapeIdentifier(schema), EscapeIdentifier(table))
}

func (d postgresDialect) ColumnType(kind bench.ColumnKind) string {
	switch kind {
	case bench.ColumnKindTimestamp:
		return "TIMESTAMP"
	case bench.ColumnKindUint:
		// BIGINT is signed, counters go up to MaxUint64
		return "NUMERIC(20)"
	case bench.ColumnKindFloat:
		return "DOUBLE PRECISION"
	}
	panic(fmt.Errorf("unsupported column kind %s", kind))
}

func (d postgresDialect) GetCreateTableQuery(schema string, table string, columns []*ColumnInfo) string {
	return fmt.Sprintf(dedent.Dedent(`
		CREATE SCHEMA IF NOT EXISTS %s;
		CREATE TABLE IF NOT EXISTS %s (
		%s
		);
		CREATE INDEX IF NOT EXISTS %s ON %s (%s);
	`),
		EscapeIdentifier(schema),
		d.TableIdentifier(schema, table),
		createTableColumns(columns),
		EscapeIdentifier(table+"_height_idx"),
		d.TableIdentifier(schema, table),
		EscapeIdentifier("height"),
	)
}

func (d postgresDialect) ExecuteSetupScript(ctx context.Context, l *Loader, script string) error {
	return execStatements(ctx, l, splitStatements(script))
}

func (d postgresDialect) Flush(tx Tx, ctx context.Context, l *Loader, rows []*bench.BlockMetrics) (int, error) {
	query := literalInsertQuery(l, rows)
	if l.tracer.Enabled() {
		l.logger.Debug("flushing rows", zap.Int("row_count", len(rows)), zap.String("query", query))
	}

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return 0, fmt.Errorf("insert %d rows: %w", len(rows), err)
	}
	return len(rows), nil
}
