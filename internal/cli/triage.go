package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/wire"
)

// TriageCmd returns the triage command
func TriageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Talk a problem through before posting a request",
	}
	cmd.AddCommand(triageChatCmd())
	return cmd
}

func triageChatCmd() *cobra.Command {
	var issue, started, region string
	var fields map[string]string
	var photos, times []string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an advisory conversation",
		Long: `Start an advisory conversation about a plumbing problem.

Type a message and press enter. Commands:
  /override <evidence>   tell the advisor every listed concern is ruled out
  /request               turn the conversation into a service request
  /quit                  leave without posting

Examples:
  tradeflow --as cust-1 triage chat --issue leak --started today --field location="under the sink"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			ctx := NewContext()
			svc := wire.TriageService()

			reply, err := svc.Start(ctx, primary.StartTriageRequest{
				UserID: actor,
				Intake: primary.TriageIntake{
					IssueType:   issue,
					WhenStarted: started,
					Fields:      fields,
					Photos:      photos,
				},
			})
			if err != nil {
				return fmt.Errorf("failed to start triage: %w", err)
			}
			convID := reply.Conversation.ID
			printReply(os.Stdout, reply)

			in := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print(color.New(color.FgHiMagenta).Sprint("> "))
				if !in.Scan() {
					fmt.Println()
					return svc.Abandon(ctx, convID)
				}
				line := strings.TrimSpace(in.Text())
				switch {
				case line == "":
					continue
				case line == "/quit":
					return svc.Abandon(ctx, convID)
				case line == "/request":
					req, err := svc.Convert(ctx, primary.ConvertTriageRequest{
						ConversationID: convID,
						Region:         region,
						PreferredTime:  times,
					})
					if err != nil {
						return fmt.Errorf("failed to create request: %w", err)
					}
					fmt.Printf("✓ Posted request %s (%s)\n", req.ID, req.Title)
					return nil
				case strings.HasPrefix(line, "/override"):
					reply, err = svc.Override(ctx, primary.TriageOverrideRequest{
						ConversationID: convID,
						Evidence:       strings.TrimSpace(strings.TrimPrefix(line, "/override")),
						Cleared:        reply.Conversation.LockFactors,
					})
				default:
					reply, err = svc.Turn(ctx, convID, line)
				}
				if err != nil {
					return fmt.Errorf("triage failed: %w", err)
				}
				printReply(os.Stdout, reply)
			}
		},
	}

	cmd.Flags().StringVar(&issue, "issue", "", "Issue type: leak, clog, toilet, faucet, low_pressure, no_hot_water, smell, other")
	cmd.Flags().StringVar(&started, "started", "", "When the problem started")
	cmd.Flags().StringToStringVar(&fields, "field", nil, "Extra detail as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&photos, "photo", nil, "Photo reference (repeatable)")
	cmd.Flags().StringVar(&region, "region", "", "Region for the request if you post one")
	cmd.Flags().StringArrayVar(&times, "time", nil, "Preferred time slot for the request (repeatable)")
	_ = cmd.MarkFlagRequired("issue")
	_ = cmd.MarkFlagRequired("started")
	return cmd
}

func printReply(w io.Writer, r *primary.TriageReply) {
	c := r.Conversation
	label := color.New(color.FgCyan).Sprintf("[%s]", c.State)
	if c.State == "emergency" {
		label = color.New(color.FgRed, color.Bold).Sprint("[EMERGENCY]")
	}
	fmt.Fprintf(w, "%s %s\n", label, r.Response)
	for _, q := range r.FollowUpQuestions {
		fmt.Fprintf(w, "  • %s\n", q)
	}
	if !r.Accepted && r.Reason != "" {
		fmt.Fprintln(w, color.New(color.Faint).Sprintf("  (%s)", r.Reason))
	}
	if c.SelfFix {
		fmt.Fprintln(w, color.New(color.FgGreen).Sprint("  This looks safe to fix yourself."))
	}
	if c.OfferProvider {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("  Type /request to have a provider take a look."))
	}
}
