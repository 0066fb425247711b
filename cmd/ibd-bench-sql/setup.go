package main

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/cli/sflags"
)

var setupCmd = Command(setupE,
	"setup <dsn>",
	"Creates the block metrics table, does nothing if it already exists",
	ExactArgs(1),
	Flags(func(flags *pflag.FlagSet) {
		AddCommonDatabaseFlags(flags)

		flags.Bool("ignore-duplicate-table-errors", false, "[Dev] Use this if you want to ignore duplicate table errors raised by concurrent setups")
	}),
)

func setupE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	loader, err := newLoader(cmd, args[0], 1)
	if err != nil {
		return err
	}
	defer loader.Close()

	if err := loader.Setup(ctx); err != nil {
		if isDuplicateTableError(err) && sflags.MustGetBool(cmd, "ignore-duplicate-table-errors") {
			zlog.Info("received duplicate table error, script did not execute successfully")
		} else {
			return fmt.Errorf("setup: %w", err)
		}
	}

	if err := loader.LoadTables(ctx); err != nil {
		return fmt.Errorf("verify table: %w", err)
	}

	zlog.Info("setup completed successfully")
	return nil
}

func isDuplicateTableError(err error) bool {
	var sqlError *pq.Error
	if !errors.As(err, &sqlError) {
		return false
	}

	// List at https://www.postgresql.org/docs/14/errcodes-appendix.html#ERRCODES-TABLE
	switch sqlError.Code {
	// Error code named `duplicate_table`
	case "42P07":
		return true
	}

	return false
}
