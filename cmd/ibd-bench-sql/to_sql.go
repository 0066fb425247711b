package main

import (
	"errors"
	"fmt"

	"github.com/pinax-network/ibd-bench-sql/bench"
	"github.com/pinax-network/ibd-bench-sql/sinker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/cli/sflags"
	"go.uber.org/zap"
)

var toSQLCmd = Command(toSQLE,
	"to-sql <dsn> <debug.log>",
	"Loads one row per block connected in the given debug.log into a SQL table",
	ExactArgs(2),
	Flags(func(flags *pflag.FlagSet) {
		AddCommonSinkerFlags(flags)
		AddCommonDatabaseFlags(flags)
		AddCommonUploadFlags(flags)

		flags.Int("batch-size", 1000, "Number of rows inserted per transaction")
		flags.Bool("setup", false, "Create the table before loading if it does not exist yet")
		flags.String("csv", "", "If non-empty, also write the rows to this CSV file, required by --upload-url")
	}),
)

func toSQLE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dsnString := args[0]
	inputPath := args[1]

	if err := sinker.CheckInput(inputPath); err != nil {
		return err
	}

	csvPath := sflags.MustGetString(cmd, "csv")
	uploader, err := readUploader(cmd)
	if err != nil {
		return err
	}
	if uploader != nil && csvPath == "" {
		return errors.New("--upload-url uploads the file written by --csv, which is not set")
	}

	loader, err := newLoader(cmd, dsnString, sflags.MustGetInt(cmd, "batch-size"))
	if err != nil {
		return err
	}
	defer loader.Close()

	if sflags.MustGetBool(cmd, "setup") {
		if err := loader.Setup(ctx); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	if err := loader.LoadTables(ctx); err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	sinks := []bench.Sink{loader}

	var writer *sinker.CSVWriter
	if csvPath != "" {
		if writer, err = sinker.CreateCSVFile(csvPath, sflags.MustGetInt(cmd, "csv-flush-every"), zlog); err != nil {
			return err
		}
		sinks = append(sinks, writer)
	}

	s := sinker.New(sinks, uint64(sflags.MustGetInt(cmd, "stats-interval")), zlog, tracer)
	summary, runErr := runSinker(ctx, s, inputPath)
	if writer != nil {
		if err := writer.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return runErr
	}

	zlog.Info("rows loaded", zap.String("table", loader.GetIdentifier()), zap.Uint64("flushed_count", loader.FlushedCount()), zap.Uint64("blocks", summary.BlocksEmitted))

	if writer != nil {
		return upload(ctx, uploader, writer.Path())
	}
	return nil
}
