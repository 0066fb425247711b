package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pinax-network/ibd-bench-sql/db"
	"github.com/pinax-network/ibd-bench-sql/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/streamingfast/cli"
	"github.com/streamingfast/cli/sflags"
)

// AddCommonSinkerFlags adds the flags common to all command that read a debug.log,
// namely the `to-csv` and `to-sql` commands.
func AddCommonSinkerFlags(flags *pflag.FlagSet) {
	flags.Int("stats-interval", 10000, "Log progress statistics every N blocks, 0 disables periodic statistics")
	flags.Int("csv-flush-every", 1000, "Flush the CSV output to disk every N rows, 0 flushes only at the end")
}

func AddCommonDatabaseFlags(flags *pflag.FlagSet) {
	flags.String("table", db.DefaultTableName, "Name of the table receiving one row per block")
	flags.String("clickhouse-cluster", "", "[Operator] If non-empty, a 'ON CLUSTER <cluster>' clause will be applied when setting up tables in Clickhouse. It will also replace the table engine with it's replicated counterpart (MergeTree will be replaced with ReplicatedMergeTree for example).")
}

func AddCommonUploadFlags(flags *pflag.FlagSet) {
	flags.String("upload-url", "", cli.FlagDescription(`
		If non-empty, the CSV file is uploaded to this location once complete. 's3://<bucket>/<key>'
		goes through --s3-endpoint and the bucket is created if it does not exist, other schemes
		(gs://, az://, file://) are written with the matching object store.
	`))
	flags.String("s3-endpoint", "localhost:9000", "Host and port of the S3 compatible endpoint used by --upload-url")
	flags.String("s3-access-key-env", "S3_ACCESS_KEY_ID", "Name of the environment variable containing the S3 access key")
	flags.String("s3-secret-key-env", "S3_SECRET_ACCESS_KEY", "Name of the environment variable containing the S3 secret key")
	flags.Bool("s3-insecure", false, "Use plain HTTP to reach --s3-endpoint")
}

func newLoader(cmd *cobra.Command, dsnString string, batchSize int) (*db.Loader, error) {
	dsn, err := db.ParseDSN(dsnString)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	loader, err := db.NewLoader(
		dsn,
		sflags.MustGetString(cmd, "table"),
		sflags.MustGetString(cmd, "clickhouse-cluster"),
		batchSize,
		zlog, tracer,
	)
	if err != nil {
		return nil, fmt.Errorf("creating loader: %w", err)
	}
	return loader, nil
}

// readUploader returns nil when --upload-url is not set. It runs before any work so a bad
// url or missing credentials fail early.
func readUploader(cmd *cobra.Command) (storage.Uploader, error) {
	rawURL := sflags.MustGetString(cmd, "upload-url")
	if rawURL == "" {
		return nil, nil
	}

	uploader, err := storage.NewUploader(rawURL, storage.S3Config{
		Endpoint:  sflags.MustGetString(cmd, "s3-endpoint"),
		AccessKey: os.Getenv(sflags.MustGetString(cmd, "s3-access-key-env")),
		SecretKey: os.Getenv(sflags.MustGetString(cmd, "s3-secret-key-env")),
		Secure:    !sflags.MustGetBool(cmd, "s3-insecure"),
	}, zlog)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return uploader, nil
}

func upload(ctx context.Context, uploader storage.Uploader, path string) error {
	if uploader == nil {
		return nil
	}
	return uploader.Upload(ctx, path)
}
