package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/wire"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the activity log",
	Long:  "View, search, and prune the activity log (audit trail of request and job changes)",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent activity",
	Long:  "Show recent activity log entries (default 50)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		limit, _ := cmd.Flags().GetInt("limit")
		actorID, _ := cmd.Flags().GetString("actor")
		entityType, _ := cmd.Flags().GetString("type")
		follow, _ := cmd.Flags().GetBool("follow")

		if limit <= 0 {
			limit = 50
		}

		filters := primary.LogFilters{
			ActorID:    actorID,
			EntityType: entityType,
			Limit:      limit,
		}

		entries, err := wire.LogService().ListLogs(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}

		printLogEntries(entries)

		if !follow {
			return nil
		}

		var last string
		if len(entries) > 0 {
			last = entries[0].CreatedAt
		}
		for {
			time.Sleep(1 * time.Second)

			fresh, err := wire.LogService().ListLogs(ctx, filters)
			if err != nil {
				fmt.Printf("Error fetching logs: %v\n", err)
				continue
			}

			// Newest first from the store; print oldest first.
			for i := len(fresh) - 1; i >= 0; i-- {
				entry := fresh[i]
				if last == "" || entry.CreatedAt > last {
					printLogEntry(os.Stdout, entry)
					last = entry.CreatedAt
				}
			}
		}
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show [entity-id]",
	Short: "Show activity for a specific entity",
	Long:  "Show activity history for a specific entity (e.g., REQ-001, ENG-004)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		actorID, _ := cmd.Flags().GetString("actor")
		limit, _ := cmd.Flags().GetInt("limit")

		filters := primary.LogFilters{
			ActorID: actorID,
			Limit:   limit,
		}
		if len(args) > 0 {
			filters.EntityID = args[0]
		}

		entries, err := wire.LogService().ListLogs(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}

		printLogEntries(entries)
		return nil
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old log entries",
	Long:  "Delete log entries older than the specified number of days (default 30)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		days, _ := cmd.Flags().GetInt("days")

		if days <= 0 {
			days = 30
		}

		count, err := wire.LogService().PruneLogs(ctx, days)
		if err != nil {
			return fmt.Errorf("failed to prune logs: %w", err)
		}

		if count == 0 {
			fmt.Printf("No log entries older than %d days found.\n", days)
		} else {
			fmt.Printf("Pruned %d log entries older than %d days.\n", count, days)
		}
		return nil
	},
}

func printLogEntries(entries []*primary.LogEntry) {
	if len(entries) == 0 {
		fmt.Println("No log entries found.")
		return
	}

	fmt.Printf("Found %d log entries:\n\n", len(entries))

	for i := len(entries) - 1; i >= 0; i-- {
		printLogEntry(os.Stdout, entries[i])
	}
}

// LogCmd returns the log command with all subcommands attached.
func LogCmd() *cobra.Command {
	logTailCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	logTailCmd.Flags().String("actor", "", "Filter by actor ID")
	logTailCmd.Flags().String("type", "", "Filter by entity type (request, engagement)")
	logTailCmd.Flags().BoolP("follow", "f", false, "Follow mode: poll for new entries")

	logShowCmd.Flags().String("actor", "", "Filter by actor ID")
	logShowCmd.Flags().IntP("limit", "n", 100, "Maximum entries to show")

	logPruneCmd.Flags().Int("days", 30, "Delete entries older than N days")

	logCmd.AddCommand(logTailCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logPruneCmd)

	return logCmd
}
