package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/wire"
)

// RequestCmd returns the request command
func RequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Post and manage service requests",
		Long: `Requesters post service requests; providers browse the open ones.

A request's status is driven by its engagement and cannot be set directly.`,
	}

	cmd.AddCommand(requestCreateCmd())
	cmd.AddCommand(requestShowCmd())
	cmd.AddCommand(requestListCmd())
	cmd.AddCommand(requestOpenCmd())
	cmd.AddCommand(requestCancelCmd())

	return cmd
}

func requestCreateCmd() *cobra.Command {
	var description, region, date string
	var times, images []string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Post a new service request",
		Long: `Post a new service request as the current user.

Examples:
  tradeflow --as cust-1 request create "Kitchen tap dripping" --region London --time "Morning (8am-12pm)"
  tradeflow --as cust-1 request create "Blocked drain" --time Flexible --date 2026-05-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			req, err := wire.RequestService().CreateRequest(NewContext(), primary.CreateRequestRequest{
				RequesterID:   actor,
				Title:         args[0],
				Description:   description,
				Region:        region,
				PreferredDate: date,
				PreferredTime: times,
				ImageRefs:     images,
			})
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			fmt.Printf("✓ Created request %s\n", req.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Describe the problem")
	cmd.Flags().StringVar(&region, "region", "", "Where the work is")
	cmd.Flags().StringVar(&date, "date", "", "Preferred date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&times, "time", nil, "Preferred time slot (repeatable; \"Flexible\" allows any)")
	cmd.Flags().StringArrayVar(&images, "image", nil, "Image reference (repeatable)")
	return cmd
}

func requestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show request details",
		Args:  entityArgs(1, "request"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := wire.RequestService().GetRequest(NewContext(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get request: %w", err)
			}
			printRequest(os.Stdout, req)
			return nil
		},
	}
}

func requestListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			requests, err := wire.RequestService().ListByRequester(NewContext(), actor)
			if err != nil {
				return fmt.Errorf("failed to list requests: %w", err)
			}
			if len(requests) == 0 {
				fmt.Println("No requests found.")
				return nil
			}
			for _, r := range requests {
				printRequestRow(os.Stdout, r)
			}
			return nil
		},
	}
}

func requestOpenCmd() *cobra.Command {
	var region string
	var limit int

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Browse requests waiting for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := wire.RequestService().ListOpen(NewContext(), primary.OpenRequestFilters{
				Region:           region,
				ExcludeRequester: GetActorID(),
				Limit:            limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list open requests: %w", err)
			}
			if len(requests) == 0 {
				fmt.Println("No open requests.")
				return nil
			}
			for _, r := range requests {
				printRequestRow(os.Stdout, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Filter by region")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum requests to show")
	return cmd
}

func requestCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Withdraw a request and any live engagement on it",
		Args:  entityArgs(1, "request"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := wire.LifecycleService().CancelRequest(NewContext(), args[0], reason)
			if err != nil {
				return fmt.Errorf("failed to cancel request: %w", err)
			}
			fmt.Printf("✓ Request %s %s\n", req.ID, colorStatus(req.Status))
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the request is withdrawn")
	return cmd
}
