package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/cli"
	"github.com/example/tradeflow/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "tradeflow",
		Short:   "tradeflow - marketplace for home-service jobs",
		Version: version.String(),
		Long: `tradeflow connects requesters who need work done with providers who do it.
Requesters post requests, providers accept and quote, and both sides confirm
when the job is done.`,
		PersistentPreRunE: cli.Bootstrap,
		SilenceUsage:      true,
	}
	cli.AddGlobalFlags(rootCmd)

	// Marketplace
	rootCmd.AddCommand(cli.RequestCmd())
	rootCmd.AddCommand(cli.JobCmd())
	rootCmd.AddCommand(cli.TriageCmd())

	// Operations
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.LogCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	// Developer tools
	rootCmd.AddCommand(cli.DevCmd())

	err := rootCmd.Execute()
	cli.Finish()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
