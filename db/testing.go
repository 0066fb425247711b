package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/streamingfast/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewTestLoader returns a loader whose transactions are recorded by the returned TestTx instead
// of reaching a database.
func NewTestLoader(
	t *testing.T,
	dsnString string,
	batchSize int,
	zlog *zap.Logger,
	tracer logging.Tracer,
) (*Loader, *TestTx) {
	dsn, err := ParseDSN(dsnString)
	require.NoError(t, err)

	loader, err := NewLoader(dsn, DefaultTableName, "", batchSize, zlog, tracer)
	require.NoError(t, err)

	loader.testTx = &TestTx{}
	return loader, loader.testTx
}

type TestTx struct {
	queries []string
}

func (t *TestTx) Rollback() error {
	t.queries = append(t.queries, "ROLLBACK")
	return nil
}

func (t *TestTx) Commit() error {
	t.queries = append(t.queries, "COMMIT")
	return nil
}

func (t *TestTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.queries = append(t.queries, query)
	return &testResult{}, nil
}

func (t *TestTx) Results() []string {
	return t.queries
}

func (t *TestTx) QueryContext(ctx context.Context, query string, args ...any) (out *sql.Rows, err error) {
	t.queries = append(t.queries, query)
	return nil, nil
}

type testResult struct{}

func (t *testResult) LastInsertId() (int64, error) {
	return 0, nil
}

func (t *testResult) RowsAffected() (int64, error) {
	return 1, nil
}
