package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pinax-network/ibd-bench-sql/sinker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/cli/sflags"
	"github.com/streamingfast/dmetrics"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

// Injected at build time
var version = "dev"

var zlog, tracer = logging.PackageLogger("ibd-bench-sql", "github.com/pinax-network/ibd-bench-sql/cmd/ibd-bench-sql")

const envPrefix = "IBD_BENCH_SQL"

var rootCmd = Root("ibd-bench-sql", "Extracts per block benchmark metrics from a node's debug.log into CSV or SQL",
	ConfigureVersion(version),
	ConfigureViper(envPrefix),

	PersistentFlags(func(flags *pflag.FlagSet) {
		flags.String("metrics-listen-addr", "", "If non-empty, Prometheus metrics are served on this address, e.g. 'localhost:9102'")
	}),
	CommandOptionFunc(func(cmd *cobra.Command) {
		cmd.PersistentPreRunE = preStart
	}),

	toCSVCmd,
	toSQLCmd,
	setupCmd,
)

func main() {
	logging.InstantiateLoggers(logging.WithDefaultLevel(zap.InfoLevel))

	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	defer zlog.Sync()

	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, errorMessage(err))
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	if errors.Is(err, sinker.ErrInputNotFound) {
		return 2
	}
	return 1
}

func errorMessage(err error) string {
	var notFound *sinker.InputNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("Error: File not found - %s", notFound.Path)
	}
	return fmt.Sprintf("An error occurred: %s", err)
}

func preStart(cmd *cobra.Command, _ []string) error {
	if addr := sflags.MustGetString(cmd, "metrics-listen-addr"); addr != "" {
		sinker.RegisterMetrics()
		go dmetrics.Serve(addr)
		zlog.Info("serving metrics", zap.String("listen_addr", addr))
	}
	return nil
}
