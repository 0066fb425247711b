package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	clickhouseparser "github.com/AfterShip/clickhouse-sql-parser/parser"
	"github.com/pinax-network/ibd-bench-sql/bench"
	"go.uber.org/zap"
)

// Identifier pattern for quoted/unquoted identifiers to use across all regexes
const (
	identifierPartPattern = "(?:'[^']*')|(?:\"[^\"]*\")|(?:`[^`]*`)|(?:[a-zA-Z_][a-zA-Z0-9_]*)"

	// Captures a possibly database qualified name made of identifier parts
	identifierPattern = `((?:` + identifierPartPattern + `)(?:\.(?:` + identifierPartPattern + `))?)`
)

// Regex patterns for SQL statement matching
var (
	createDbPattern        = regexp.MustCompile(`(?i)^\s*CREATE\s+(DATABASE|SCHEMA)(\s+IF\s+NOT\s+EXISTS)?\s+` + identifierPattern)
	createTablePattern     = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE(\s+IF\s+NOT\s+EXISTS)?\s+` + identifierPattern)
	mergeTreeEnginePattern = regexp.MustCompile(`(?i)(ENGINE\s*=\s*)([A-Za-z]*MergeTree)(\(|\s+|;|$)`)

	blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	lineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

type clickhouseDialect struct {
	cluster string
}

func (d clickhouseDialect) Name() string {
	return "clickhouse"
}

func (d clickhouseDialect) EscapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func (d clickhouseDialect) TableIdentifier(database string, table string) string {
	return fmt.Sprintf("%s.%s", d.EscapeIdentifier(database), d.EscapeIdentifier(table))
}

func (d clickhouseDialect) ColumnType(kind bench.ColumnKind) string {
	switch kind {
	case bench.ColumnKindTimestamp:
		return "Nullable(DateTime('UTC'))"
	case bench.ColumnKindUint:
		return "UInt64"
	case bench.ColumnKindFloat:
		return "Float64"
	}
	panic(fmt.Errorf("unsupported column kind %s", kind))
}

func (d clickhouseDialect) GetCreateTableQuery(database string, table string, columns []*ColumnInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE DATABASE IF NOT EXISTS %s;\n", d.EscapeIdentifier(database))
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n%s\n) ENGINE = MergeTree() ORDER BY (%s);\n",
		d.TableIdentifier(database, table),
		createTableColumns(columns),
		d.EscapeIdentifier("height"),
	)
	return b.String()
}

// ExecuteSetupScript validates every statement with the ClickHouse grammar before running
// any of them. In cluster mode, statements are patched to run ON CLUSTER with replicated engines.
func (d clickhouseDialect) ExecuteSetupScript(ctx context.Context, l *Loader, script string) error {
	statements, err := d.prepareSetupStatements(script)
	if err != nil {
		return err
	}

	return execStatements(ctx, l, statements)
}

func (d clickhouseDialect) prepareSetupStatements(script string) ([]string, error) {
	statements := splitStatements(stripSQLComments(script))
	for i, query := range statements {
		if d.cluster != "" {
			query, _ = patchClickhouseQuery(query, d.cluster)
			statements[i] = query
		}

		if _, err := clickhouseparser.NewParser(query).ParseStmts(); err != nil {
			return nil, fmt.Errorf("invalid clickhouse statement %q: %w", query, err)
		}
	}
	return statements, nil
}

// Flush inserts rows through a prepared batch statement. The official clickhouse driver only
// batches inside a transaction bound to a single table, so it opens its own instead of using tx.
func (d clickhouseDialect) Flush(_ Tx, ctx context.Context, l *Loader, rows []*bench.BlockMetrics) (int, error) {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin db transaction: %w", err)
	}

	columns := l.Columns()
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.escapedName
	}

	query := fmt.Sprintf("INSERT INTO %s (%s)", l.TableIdentifier(), strings.Join(names, ","))
	batch, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert into %q: %w", l.table, err)
	}

	if l.tracer.Enabled() {
		l.logger.Debug("flushing rows", zap.Int("row_count", len(rows)), zap.String("query", query))
	}

	for _, row := range rows {
		if _, err := batch.ExecContext(ctx, clickhouseValues(row)...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("executing for block %d: %w", row.Height, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit db transaction: %w", err)
	}

	return len(rows), nil
}

// clickhouseValues converts the row to driver values, unset timestamps are sent as NULL.
func clickhouseValues(row *bench.BlockMetrics) []any {
	values := row.Values()
	for i, value := range values {
		if ts, ok := value.(bench.Timestamp); ok {
			if t, set := ts.Time(); set {
				values[i] = t
			} else {
				values[i] = nil
			}
		}
	}
	return values
}

// patchClickhouseQuery applies required transformations to ClickHouse SQL statements
// for cluster mode. Returns the modified query and the detected statement type.
func patchClickhouseQuery(sql, clusterName string) (string, string) {
	var stmtType string
	onCluster := strings.Contains(strings.ToUpper(sql), "ON CLUSTER")

	if matches := createDbPattern.FindStringSubmatch(sql); matches != nil {
		stmtType = "CREATE DATABASE"
		if !onCluster {
			sql = createDbPattern.ReplaceAllString(sql,
				fmt.Sprintf("CREATE %s$2 $3 ON CLUSTER %s",
					strings.ToUpper(matches[1]), clickhouseDialect{}.EscapeIdentifier(clusterName)))
		}
	}

	if matches := createTablePattern.FindStringSubmatch(sql); matches != nil {
		stmtType = "CREATE TABLE"
		if !onCluster {
			sql = createTablePattern.ReplaceAllString(sql,
				fmt.Sprintf("CREATE TABLE$1 $2 ON CLUSTER %s",
					clickhouseDialect{}.EscapeIdentifier(clusterName)))
		}

		sql = replaceEngineWithReplicated(sql)
	}

	return sql, stmtType
}

// replaceEngineWithReplicated replaces non-replicated MergeTree engines with their Replicated variants
func replaceEngineWithReplicated(sql string) string {
	return mergeTreeEnginePattern.ReplaceAllStringFunc(sql, func(match string) string {
		submatches := mergeTreeEnginePattern.FindStringSubmatch(match)
		prefix := submatches[1]     // ENGINE =
		engineName := submatches[2] // e.g., MergeTree
		suffix := submatches[3]     // (, or space, or ; or end

		if !strings.HasPrefix(strings.ToUpper(engineName), "REPLICATED") {
			return prefix + "Replicated" + engineName + suffix
		}
		return match
	})
}

// stripSQLComments removes all SQL comments from an SQL statement
func stripSQLComments(sql string) string {
	sql = blockCommentPattern.ReplaceAllString(sql, "")
	sql = lineCommentPattern.ReplaceAllString(sql, "")
	sql = whitespacePattern.ReplaceAllString(sql, " ")

	return strings.TrimSpace(sql)
}
