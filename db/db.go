package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jimsmart/schema"
	"github.com/lib/pq"
	"github.com/pinax-network/ibd-bench-sql/bench"
	"github.com/streamingfast/logging"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/maps"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "modernc.org/sqlite"
)

var DefaultTableName = "block_metrics"

// Make the typing a bit easier
type OrderedMap[K comparable, V any] struct {
	*orderedmap.OrderedMap[K, V]
}

func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{OrderedMap: orderedmap.New[K, V]()}
}

type ColumnInfo struct {
	name             string
	escapedName      string
	databaseTypeName string
	kind             bench.ColumnKind
}

func (c *ColumnInfo) Name() string {
	return c.name
}

func (c *ColumnInfo) EscapedName() string {
	return c.escapedName
}

func (c *ColumnInfo) DatabaseTypeName() string {
	return c.databaseTypeName
}

type SystemTableError struct {
	error
}

// Loader buffers blocks and writes them to the block metrics table in batches, one
// transaction per batch.
type Loader struct {
	*sql.DB

	dsn       *DSN
	schema    string
	table     string
	columns   *OrderedMap[string, *ColumnInfo]
	dialect   Dialect
	batchSize int

	rows         []*bench.BlockMetrics
	flushedCount uint64

	logger *zap.Logger
	tracer logging.Tracer

	testTx *TestTx // used for testing: if non-nil, 'loader.BeginTx()' will return this object instead of a real *sql.Tx
}

func NewLoader(
	dsn *DSN,
	tableName string,
	clickhouseCluster string,
	batchSize int,
	logger *zap.Logger,
	tracer logging.Tracer,
) (*Loader, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	sqlDB, err := sql.Open(dsn.Driver(), dsn.ConnString())
	if err != nil {
		return nil, fmt.Errorf("open db connection: %w", err)
	}

	dialect, err := newDialect(dsn.Driver(), clickhouseCluster)
	if err != nil {
		return nil, fmt.Errorf("get dialect: %w", err)
	}

	columns := NewOrderedMap[string, *ColumnInfo]()
	for _, column := range bench.Columns {
		columns.Set(column.Name, &ColumnInfo{
			name:             column.Name,
			escapedName:      dialect.EscapeIdentifier(column.Name),
			databaseTypeName: dialect.ColumnType(column.Kind),
			kind:             column.Kind,
		})
	}

	l := &Loader{
		DB:        sqlDB,
		dsn:       dsn,
		schema:    dsn.Schema(),
		table:     tableName,
		columns:   columns,
		dialect:   dialect,
		batchSize: batchSize,
		rows:      make([]*bench.BlockMetrics, 0, batchSize),
		logger:    logger,
		tracer:    tracer,
	}

	logger.Info("created new DB loader",
		zap.Int("batch_size", batchSize),
		zap.String("driver", dsn.driver),
		zap.String("database", dsn.database),
		zap.String("schema", dsn.schema),
		zap.String("table", tableName),
		zap.String("user", dsn.username),
		zap.Stringer("password", obfuscatedString(dsn.password)),
		zap.String("host", dsn.host),
		zap.Int64("port", dsn.port),
		zap.String("dialect", dialect.Name()),
	)

	return l, nil
}

type Tx interface {
	Rollback() error
	Commit() error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (l *Loader) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	if l.testTx != nil {
		return l.testTx, nil
	}
	return l.DB.BeginTx(ctx, opts)
}

// GetIdentifier returns <database>/<schema>.<table> suitable for user presentation
func (l *Loader) GetIdentifier() string {
	return fmt.Sprintf("%s/%s.%s", l.dsn.database, l.schema, l.table)
}

func (l *Loader) TableIdentifier() string {
	return l.dialect.TableIdentifier(l.schema, l.table)
}

func (l *Loader) Columns() []*ColumnInfo {
	out := make([]*ColumnInfo, 0, l.columns.Len())
	for pair := l.columns.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Setup creates the schema (when the dialect has one) and the block metrics table.
func (l *Loader) Setup(ctx context.Context) error {
	script := l.dialect.GetCreateTableQuery(l.schema, l.table, l.Columns())
	if err := l.dialect.ExecuteSetupScript(ctx, l, script); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}

	l.logger.Info("block metrics table ready", zap.String("table", l.GetIdentifier()))
	return nil
}

// LoadTables checks that the block metrics table exists with every expected column.
func (l *Loader) LoadTables(ctx context.Context) error {
	found, err := l.tableColumns(ctx)
	if err != nil {
		return err
	}

	if len(found) == 0 {
		return &SystemTableError{fmt.Errorf("%s table is not found, run 'setup' first", l.TableIdentifier())}
	}

	var missing []string
	for pair := l.columns.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := found[pair.Key]; !ok {
			missing = append(missing, pair.Key)
		}
	}

	if len(missing) > 0 {
		columns := maps.Keys(found)
		sort.Strings(columns)
		return &SystemTableError{fmt.Errorf("table %s is missing columns %q (found columns are %q)", l.TableIdentifier(), strings.Join(missing, ", "), strings.Join(columns, ", "))}
	}

	return nil
}

func (l *Loader) tableColumns(ctx context.Context) (map[string]string, error) {
	if lister, ok := l.dialect.(tableColumnsLister); ok {
		return lister.TableColumns(ctx, l)
	}

	schemaTables, err := schema.Tables(l.DB)
	if err != nil {
		return nil, fmt.Errorf("retrieving table and schema: %w", err)
	}

	out := map[string]string{}
	for schemaTableName, columns := range schemaTables {
		schemaName := schemaTableName[0]
		tableName := schemaTableName[1]
		l.logger.Debug("processing schema's table",
			zap.String("schema_name", schemaName),
			zap.String("table_name", tableName),
		)

		if schemaName != l.schema || tableName != l.table {
			continue
		}

		for _, f := range columns {
			out[f.Name()] = f.DatabaseTypeName()
		}
	}

	return out, nil
}

// WriteBlock buffers the block, it reaches the database on the next Flush.
func (l *Loader) WriteBlock(_ context.Context, block *bench.BlockMetrics) error {
	l.rows = append(l.rows, block)
	return nil
}

func (l *Loader) FlushNeeded() bool {
	return len(l.rows) >= l.batchSize
}

func (l *Loader) Flush(ctx context.Context) (int, error) {
	if len(l.rows) == 0 {
		return 0, nil
	}

	tx, err := l.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin db transaction: %w", err)
	}

	rowCount, err := l.dialect.Flush(tx, ctx, l, l.rows)
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			l.logger.Warn("rollback failed", zap.Error(rollbackErr))
		}
		if isUndefinedTableError(err) {
			return 0, fmt.Errorf("flush %d rows: table %s does not exist, run 'setup' first: %w", len(l.rows), l.TableIdentifier(), err)
		}
		return 0, fmt.Errorf("flush %d rows: %w", len(l.rows), err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit db transaction: %w", err)
	}

	l.flushedCount += uint64(rowCount)
	l.rows = l.rows[:0]

	l.logger.Debug("flushed rows", zap.Int("row_count", rowCount), zap.Uint64("flushed_count", l.flushedCount))
	return rowCount, nil
}

func (l *Loader) FlushedCount() uint64 {
	return l.flushedCount
}

func (l *Loader) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt("buffered_rows", len(l.rows))
	encoder.AddUint64("flushed_count", l.flushedCount)
	return nil
}

func isUndefinedTableError(err error) bool {
	var sqlError *pq.Error
	if !errors.As(err, &sqlError) {
		return false
	}

	// List at https://www.postgresql.org/docs/14/errcodes-appendix.html#ERRCODES-TABLE
	switch sqlError.Code {
	// Error code named `undefined_table`
	case "42P01":
		return true
	}

	return false
}

type obfuscatedString string

func (s obfuscatedString) String() string {
	if len(s) == 0 {
		return "<unset>"
	}

	return "********"
}
