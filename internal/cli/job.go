package cli

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/wire"
)

// JobCmd returns the job command. A job is an engagement between one
// provider and one request.
func JobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "job",
		Aliases: []string{"engagement"},
		Short:   "Accept, quote and complete jobs",
		Long: `Drive an engagement through its lifecycle:

  accept -> quote -> accept-quote -> confirm (both sides)

Either side may cancel before completion.`,
	}

	cmd.AddCommand(jobAcceptCmd())
	cmd.AddCommand(jobQuoteCmd())
	cmd.AddCommand(jobAcceptQuoteCmd())
	cmd.AddCommand(jobDeclineCmd())
	cmd.AddCommand(jobConfirmCmd())
	cmd.AddCommand(jobCancelCmd())
	cmd.AddCommand(jobShowCmd())
	cmd.AddCommand(jobListCmd())
	cmd.AddCommand(MessageCmd())

	return cmd
}

func jobAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <request-id>",
		Short: "Take on an open request as provider",
		Args:  entityArgs(1, "request"),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			eng, err := wire.LifecycleService().Accept(NewContext(), args[0], actor)
			if err != nil {
				return fmt.Errorf("failed to accept request: %w", err)
			}
			fmt.Printf("✓ Accepted %s as %s. Send a quote with: tradeflow job quote %s <amount>\n", args[0], eng.ID, eng.ID)
			return nil
		},
	}
}

func jobQuoteCmd() *cobra.Command {
	var slot string

	cmd := &cobra.Command{
		Use:   "quote <engagement-id> <amount>",
		Short: "Quote a price and time",
		Long: `Quote a price and time for the job. Re-quoting after a decline is allowed.

Examples:
  tradeflow --as pro-1 job quote ENG-001 150
  tradeflow --as pro-1 job quote ENG-001 120.50 --time "Morning (8am-12pm)"`,
		Args: entityArgs(2, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			eng, err := wire.LifecycleService().SubmitQuote(NewContext(), primary.SubmitQuoteRequest{
				EngagementID:  args[0],
				Amount:        amount,
				ScheduledTime: slot,
			})
			if err != nil {
				return fmt.Errorf("failed to submit quote: %w", err)
			}
			printEngagement(os.Stdout, eng)
			return nil
		},
	}

	cmd.Flags().StringVar(&slot, "time", "", "Proposed time (one of the request's slots)")
	return cmd
}

func jobAcceptQuoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept-quote <engagement-id>",
		Short: "Accept the current quote (requester)",
		Args:  entityArgs(1, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := wire.LifecycleService().AcceptQuote(NewContext(), args[0])
			if err != nil {
				return fmt.Errorf("failed to accept quote: %w", err)
			}
			printEngagement(os.Stdout, eng)
			return nil
		},
	}
}

func jobDeclineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decline <engagement-id>",
		Short: "Decline the current quote (requester)",
		Args:  entityArgs(1, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := wire.LifecycleService().DeclineQuote(NewContext(), args[0])
			if err != nil {
				return fmt.Errorf("failed to decline quote: %w", err)
			}
			printEngagement(os.Stdout, eng)
			return nil
		},
	}
}

func jobConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <engagement-id>",
		Short: "Confirm the work is done",
		Long: `Confirm the work is done. The job completes once both sides confirm.
The side is taken from --role.`,
		Args: entityArgs(1, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalRole == "" {
				return fmt.Errorf("--role is required (requester or provider)")
			}
			eng, err := wire.LifecycleService().ConfirmDone(NewContext(), args[0], globalRole)
			if err != nil {
				return fmt.Errorf("failed to confirm: %w", err)
			}
			printEngagement(os.Stdout, eng)
			return nil
		},
	}
}

func jobCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <engagement-id>",
		Short: "Cancel a job before completion",
		Args:  entityArgs(1, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := wire.LifecycleService().Cancel(NewContext(), args[0], reason)
			if err != nil {
				return fmt.Errorf("failed to cancel: %w", err)
			}
			printEngagement(os.Stdout, eng)
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the job is cancelled")
	return cmd
}

func jobShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <engagement-id>",
		Short: "Show a job from your side",
		Args:  entityArgs(1, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalRole == "" {
				return fmt.Errorf("--role is required (requester or provider)")
			}
			view, err := wire.LifecycleService().GetEngagement(NewContext(), args[0], globalRole)
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}
			printView(os.Stdout, view)
			return nil
		},
	}
}

func jobListCmd() *cobra.Command {
	var requestID, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Long: `List jobs. With --role provider or requester the list is limited to
your own jobs on that side.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := primary.EngagementFilters{RequestID: requestID, Status: status}
			switch globalRole {
			case "provider", "plumber":
				filters.ProviderID = GetActorID()
			case "requester", "customer":
				filters.RequesterID = GetActorID()
			}
			engagements, err := wire.LifecycleService().ListEngagements(NewContext(), filters)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if len(engagements) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}
			for _, e := range engagements {
				printEngagementRow(os.Stdout, e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "Filter by request ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}
