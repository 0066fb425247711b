package db

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T) (dbConnectionString string) {
	t.Helper()
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ibd"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	testcontainers.CleanupContainer(t, postgresContainer)
	require.NoError(t, err)

	dbConnectionString, err = postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return dbConnectionString
}

func TestPostgresLoader_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	dsn, err := ParseDSN(setupPostgresContainer(t) + "&schemaName=bench")
	require.NoError(t, err)

	loader, err := NewLoader(dsn, "", "", 2, logger, tracer)
	require.NoError(t, err)
	defer loader.Close()

	require.NoError(t, loader.Setup(ctx))
	require.NoError(t, loader.LoadTables(ctx))

	for _, height := range []uint64{10, 11, 12} {
		require.NoError(t, loader.WriteBlock(ctx, testBlock(height)))
	}
	count, err := loader.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	var rowCount int
	var end time.Time
	require.NoError(t, loader.QueryRowContext(ctx, `SELECT count(*), max("end_timestamp") FROM "bench"."block_metrics" WHERE "date" IS NULL`).Scan(&rowCount, &end))

	assert.Equal(t, 3, rowCount)
	assert.Equal(t, time.Date(2024, 7, 19, 6, 25, 31, 0, time.UTC), end.UTC())
}

func TestPostgresLoader_MissingTable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	dsn, err := ParseDSN(setupPostgresContainer(t))
	require.NoError(t, err)

	loader, err := NewLoader(dsn, "absent", "", 1, logger, tracer)
	require.NoError(t, err)
	defer loader.Close()

	require.NoError(t, loader.WriteBlock(ctx, testBlock(1)))
	_, err = loader.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 'setup' first")
}

func TestPostgresLoader_FullRangeCounters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	dsn, err := ParseDSN(setupPostgresContainer(t))
	require.NoError(t, err)

	loader, err := NewLoader(dsn, "", "", 1, logger, tracer)
	require.NoError(t, err)
	defer loader.Close()

	require.NoError(t, loader.Setup(ctx))
	require.NoError(t, loader.LoadTables(ctx))

	block := testBlock(20)
	block.TxTotal = math.MaxUint64
	require.NoError(t, loader.WriteBlock(ctx, block))
	_, err = loader.Flush(ctx)
	require.NoError(t, err)

	var txTotal string
	require.NoError(t, loader.QueryRowContext(ctx, `SELECT "tx_total"::text FROM "public"."block_metrics" WHERE "height" = 20`).Scan(&txTotal))
	assert.Equal(t, "18446744073709551615", txTotal)
}
