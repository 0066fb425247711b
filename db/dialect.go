package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/pinax-network/ibd-bench-sql/bench"
	"go.uber.org/zap"
)

type UnknownDriverError struct {
	Driver string
}

// Error returns a formatted string description.
func (e UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown database driver: %s", e.Driver)
}

type Dialect interface {
	Name() string
	EscapeIdentifier(name string) string
	TableIdentifier(schema string, table string) string
	ColumnType(kind bench.ColumnKind) string
	GetCreateTableQuery(schema string, table string, columns []*ColumnInfo) string
	ExecuteSetupScript(ctx context.Context, l *Loader, script string) error
	Flush(tx Tx, ctx context.Context, l *Loader, rows []*bench.BlockMetrics) (int, error)
}

// tableColumnsLister is implemented by dialects whose driver is not supported by
// github.com/jimsmart/schema.
type tableColumnsLister interface {
	TableColumns(ctx context.Context, l *Loader) (map[string]string, error)
}

func newDialect(driver string, clickhouseCluster string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverClickHouse:
		return clickhouseDialect{cluster: clickhouseCluster}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	}

	return nil, UnknownDriverError{Driver: driver}
}

func EscapeIdentifier(valueToEscape string) string {
	if strings.Contains(valueToEscape, `"`) {
		valueToEscape = strings.ReplaceAll(valueToEscape, `"`, `""`)
	}

	return `"` + valueToEscape + `"`
}

func escapeStringValue(valueToEscape string) string {
	if strings.Contains(valueToEscape, `'`) {
		valueToEscape = strings.ReplaceAll(valueToEscape, `'`, `''`)
	}

	return `'` + valueToEscape + `'`
}

// literalValue renders a bench.BlockMetrics value as a SQL literal, unset timestamps are NULL.
func literalValue(value any) string {
	if ts, ok := value.(bench.Timestamp); ok {
		if !ts.IsSet() {
			return "NULL"
		}
		return escapeStringValue(ts.String())
	}
	return bench.FormatCell(value)
}

func literalInsertQuery(l *Loader, rows []*bench.BlockMetrics) string {
	columns := l.Columns()
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.escapedName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", l.TableIdentifier(), strings.Join(names, ","))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for j, value := range row.Values() {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString(literalValue(value))
		}
		b.WriteString(")")
	}
	b.WriteString(";")

	return b.String()
}

func createTableColumns(columns []*ColumnInfo) string {
	definitions := make([]string, len(columns))
	for i, column := range columns {
		definitions[i] = fmt.Sprintf("    %s %s", column.escapedName, column.databaseTypeName)
	}
	return strings.Join(definitions, ",\n")
}

func splitStatements(script string) []string {
	var out []string
	for _, query := range strings.Split(script, ";") {
		query = strings.TrimSpace(query)
		if len(query) == 0 {
			continue
		}
		out = append(out, query)
	}
	return out
}

func execStatements(ctx context.Context, l *Loader, statements []string) error {
	for _, query := range statements {
		if l.tracer.Enabled() {
			l.logger.Debug("executing setup statement", zap.String("query", query))
		}

		if _, err := l.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("exec %q: %w", query, err)
		}
	}
	return nil
}
