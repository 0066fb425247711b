package main

import (
	"github.com/pinax-network/ibd-bench-sql/bench"
	"github.com/pinax-network/ibd-bench-sql/sinker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/cli/sflags"
)

var toCSVCmd = Command(toCSVE,
	"to-csv <debug.log> <output.csv>",
	"Writes one CSV row per block connected in the given debug.log",
	ExactArgs(2),
	Flags(func(flags *pflag.FlagSet) {
		AddCommonSinkerFlags(flags)
		AddCommonUploadFlags(flags)
	}),
)

func toCSVE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inputPath := args[0]
	outputPath := args[1]

	if err := sinker.CheckInput(inputPath); err != nil {
		return err
	}

	uploader, err := readUploader(cmd)
	if err != nil {
		return err
	}

	writer, err := sinker.CreateCSVFile(outputPath, sflags.MustGetInt(cmd, "csv-flush-every"), zlog)
	if err != nil {
		return err
	}

	s := sinker.New([]bench.Sink{writer}, uint64(sflags.MustGetInt(cmd, "stats-interval")), zlog, tracer)
	_, runErr := runSinker(ctx, s, inputPath)
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	return upload(ctx, uploader, outputPath)
}
