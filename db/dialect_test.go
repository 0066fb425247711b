package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pinax-network/ibd-bench-sql/bench"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDialect_GetCreateTableQuery(t *testing.T) {
	loader, _ := NewTestLoader(t, "psql://x:5432/x?schemaName=ibd", 1, logger, tracer)

	script := loader.dialect.GetCreateTableQuery("ibd", "block_metrics", loader.Columns())
	statements := splitStatements(script)
	require.Len(t, statements, 3)

	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "ibd"`, statements[0])
	assert.True(t, strings.HasPrefix(statements[1], `CREATE TABLE IF NOT EXISTS "ibd"."block_metrics" (`))
	assert.Contains(t, statements[1], `"start_timestamp" TIMESTAMP,`)
	assert.Contains(t, statements[1], `"height" NUMERIC(20),`)
	assert.Contains(t, statements[1], `"connect_block_time" DOUBLE PRECISION`)
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "block_metrics_height_idx" ON "ibd"."block_metrics" ("height")`, statements[2])
}

func TestSQLiteDialect_GetCreateTableQuery(t *testing.T) {
	loader, _ := NewTestLoader(t, "sqlite://bench.db", 1, logger, tracer)

	statements := splitStatements(loader.dialect.GetCreateTableQuery("main", "block_metrics", loader.Columns()))
	require.Len(t, statements, 2)

	assert.True(t, strings.HasPrefix(statements[0], `CREATE TABLE IF NOT EXISTS "block_metrics" (`))
	assert.Contains(t, statements[0], `"date" TEXT,`)
	assert.Contains(t, statements[0], `"cache_count" INTEGER,`)
	assert.Contains(t, statements[0], `"progress" REAL,`)
}

func TestClickhouseDialect_PrepareSetupStatements(t *testing.T) {
	loader, _ := NewTestLoader(t, "clickhouse://localhost/ibd", 1, logger, tracer)
	dialect := loader.dialect.(clickhouseDialect)

	statements, err := dialect.prepareSetupStatements(dialect.GetCreateTableQuery("ibd", "block_metrics", loader.Columns()))
	require.NoError(t, err)
	require.Len(t, statements, 2)

	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS `ibd`", statements[0])
	assert.True(t, strings.HasPrefix(statements[1], "CREATE TABLE IF NOT EXISTS `ibd`.`block_metrics` ( `start_timestamp` Nullable(DateTime('UTC')),"))
	assert.True(t, strings.HasSuffix(statements[1], "ENGINE = MergeTree() ORDER BY (`height`)"))

	_, err = dialect.prepareSetupStatements("CREATE TABLE IF NOT EXISTS (")
	require.Error(t, err)
}

func TestPatchClickhouseQuery(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		expectSQL  string
		expectType string
	}{
		{
			name:       "create database",
			sql:        "CREATE DATABASE IF NOT EXISTS `ibd`",
			expectSQL:  "CREATE DATABASE IF NOT EXISTS `ibd` ON CLUSTER `bench`",
			expectType: "CREATE DATABASE",
		},
		{
			name:       "create table qualified",
			sql:        "CREATE TABLE IF NOT EXISTS `ibd`.`block_metrics` ( `height` UInt64 ) ENGINE = MergeTree() ORDER BY (`height`)",
			expectSQL:  "CREATE TABLE IF NOT EXISTS `ibd`.`block_metrics` ON CLUSTER `bench` ( `height` UInt64 ) ENGINE = ReplicatedMergeTree() ORDER BY (`height`)",
			expectType: "CREATE TABLE",
		},
		{
			name:       "create table unquoted",
			sql:        "create table ibd.block_metrics (height UInt64) ENGINE = ReplacingMergeTree ORDER BY height",
			expectSQL:  "CREATE TABLE ibd.block_metrics ON CLUSTER `bench` (height UInt64) ENGINE = ReplicatedReplacingMergeTree ORDER BY height",
			expectType: "CREATE TABLE",
		},
		{
			name:       "already on cluster",
			sql:        "CREATE TABLE `t` ON CLUSTER `other` (`height` UInt64) ENGINE = ReplicatedMergeTree() ORDER BY height",
			expectSQL:  "CREATE TABLE `t` ON CLUSTER `other` (`height` UInt64) ENGINE = ReplicatedMergeTree() ORDER BY height",
			expectType: "CREATE TABLE",
		},
		{
			name:       "other statement",
			sql:        "SELECT 1",
			expectSQL:  "SELECT 1",
			expectType: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sql, stmtType := patchClickhouseQuery(test.sql, "bench")
			assert.Equal(t, test.expectSQL, sql)
			assert.Equal(t, test.expectType, stmtType)
		})
	}
}

func TestStripSQLComments(t *testing.T) {
	assert.Equal(t, "CREATE TABLE t ( a UInt64 ) ENGINE = MergeTree() ORDER BY a",
		stripSQLComments("/* block metrics */\nCREATE TABLE t ( -- one row per block\n  a UInt64\n) ENGINE = MergeTree() ORDER BY a"),
	)
}

func TestClickhouseValues(t *testing.T) {
	block := testBlock(840000)
	values := clickhouseValues(block)
	require.Len(t, values, len(bench.Columns))

	start, _ := block.StartTimestamp.Time()
	assert.Equal(t, start, values[0])
	assert.Nil(t, values[2])
	assert.Equal(t, uint64(840000), values[3])
	assert.Equal(t, 0.27, values[22])
}

func TestEscapeIdentifier(t *testing.T) {
	assert.Equal(t, `"block_metrics"`, EscapeIdentifier("block_metrics"))
	assert.Equal(t, `"a""b"`, EscapeIdentifier(`a"b`))
	assert.Equal(t, `'it''s'`, escapeStringValue("it's"))
	assert.Equal(t, "`a\\`b`", clickhouseDialect{}.EscapeIdentifier("a`b"))
}

func TestNewDialect_Unknown(t *testing.T) {
	_, err := newDialect("mysql", "")
	assert.Equal(t, UnknownDriverError{Driver: "mysql"}, err)
}

func TestSQLiteLoader_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bench.db")

	dsn, err := ParseDSN("sqlite://" + path)
	require.NoError(t, err)

	loader, err := NewLoader(dsn, "", "", 2, logger, tracer)
	require.NoError(t, err)
	defer loader.Close()

	err = loader.LoadTables(ctx)
	require.Error(t, err)
	var systemErr *SystemTableError
	assert.ErrorAs(t, err, &systemErr)

	require.NoError(t, loader.Setup(ctx))
	require.NoError(t, loader.Setup(ctx), "setup is idempotent")
	require.NoError(t, loader.LoadTables(ctx))

	for _, height := range []uint64{1, 2, 3} {
		require.NoError(t, loader.WriteBlock(ctx, testBlock(height)))
		if loader.FlushNeeded() {
			_, err := loader.Flush(ctx)
			require.NoError(t, err)
		}
	}
	_, err = loader.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), loader.FlushedCount())

	rows, err := loader.QueryContext(ctx, `SELECT "height", "start_timestamp", "date", "log2_work" FROM "block_metrics" ORDER BY "height"`)
	require.NoError(t, err)
	defer rows.Close()

	var heights []uint64
	for rows.Next() {
		var height uint64
		var start string
		var date sql.NullString
		var log2Work float64
		require.NoError(t, rows.Scan(&height, &start, &date, &log2Work))

		assert.Equal(t, "2024-07-19 06:25:30", start)
		assert.False(t, date.Valid)
		assert.Equal(t, 94.934882, log2Work)
		heights = append(heights, height)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []uint64{1, 2, 3}, heights)
}
