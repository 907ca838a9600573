package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/wire"
)

// MessageCmd returns the message command
func MessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "message",
		Aliases: []string{"msg"},
		Short:   "Message the other side of a job",
		Long: `Send and read messages between the requester and provider of a job.

Messages are persistent; history survives cancellation but no new messages
can be sent once a job is closed.`,
	}

	cmd.AddCommand(messageSendCmd())
	cmd.AddCommand(messageListCmd())
	cmd.AddCommand(messageReadCmd())
	cmd.AddCommand(messageUnreadCmd())

	return cmd
}

func messageSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <engagement-id> <body>",
		Short: "Send a message",
		Long: `Send a message to the other participant.

Examples:
  tradeflow --as pro-1 job message send ENG-001 "Running 10 minutes late"`,
		Args: entityArgs(2, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			msg, err := wire.MessageService().Send(NewContext(), primary.SendMessageRequest{
				EngagementID: args[0],
				SenderID:     actor,
				Body:         args[1],
			})
			if err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			fmt.Printf("✓ Sent %s to %s\n", msg.ID, msg.RecipientID)
			return nil
		},
	}
}

func messageListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <engagement-id>",
		Short: "Show the conversation, oldest first",
		Args:  entityArgs(1, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := wire.MessageService().List(NewContext(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}
			if len(messages) == 0 {
				fmt.Println("No messages yet.")
				return nil
			}
			me := GetActorID()
			for _, m := range messages {
				printMessage(os.Stdout, m, me)
			}
			return nil
		},
	}
}

func messageReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <engagement-id>",
		Short: "Mark messages addressed to you as read",
		Args:  entityArgs(1, "engagement"),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			n, err := wire.MessageService().MarkRead(NewContext(), args[0], actor)
			if err != nil {
				return fmt.Errorf("failed to mark read: %w", err)
			}
			fmt.Printf("✓ Marked %d message(s) read\n", n)
			return nil
		},
	}
}

func messageUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Count unread messages per job",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			counts, err := wire.MessageService().UnreadCounts(NewContext(), actor)
			if err != nil {
				return fmt.Errorf("failed to count unread: %w", err)
			}
			if len(counts) == 0 {
				fmt.Println("No unread messages.")
				return nil
			}
			ids := make([]string, 0, len(counts))
			for id := range counts {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("%-10s %d\n", id, counts[id])
			}
			return nil
		},
	}
}
