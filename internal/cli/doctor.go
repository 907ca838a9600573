package cli

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/config"
	"github.com/example/tradeflow/internal/db"
	"github.com/example/tradeflow/internal/version"
	"github.com/example/tradeflow/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the tradeflow environment",
		Long: `Health check for a tradeflow installation.

Validates:
- Database opens and the schema is current
- Classifier configuration
- Telegram push configuration
- Gateway port is free

Examples:
  tradeflow doctor              # Run full health check
  tradeflow doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()
			results := []CheckResult{
				checkDatabase(),
				checkClassifier(cfg.Classifier),
				checkTelegram(cfg.Notify.Telegram),
				checkGatewayPort(cfg.Gateway),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				fmt.Println()
				fmt.Println(version.String())
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if !hasErrors {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

func checkDatabase() CheckResult {
	database, err := db.GetDB()
	if err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: "  " + err.Error()}
	}
	var current int
	if err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: "  cannot read schema version: " + err.Error()}
	}
	if latest := db.LatestVersion(); current < latest {
		return CheckResult{
			Name:    "Database",
			Status:  "⚠",
			Details: fmt.Sprintf("  schema at version %d, latest is %d", current, latest),
		}
	}
	return CheckResult{Name: "Database", Status: "✓"}
}

func checkClassifier(cc config.ClassifierConfig) CheckResult {
	switch cc.Provider {
	case config.ProviderOpenAI:
		if strings.TrimSpace(cc.APIKey) == "" {
			return CheckResult{Name: "Classifier", Status: "✗", Details: "  classifier.api_key is empty"}
		}
		return CheckResult{Name: "Classifier", Status: "✓"}
	default:
		return CheckResult{
			Name:    "Classifier",
			Status:  "⚠",
			Details: "  no model configured; triage uses offline emergency rules only",
		}
	}
}

func checkTelegram(tg config.TelegramConfig) CheckResult {
	if !tg.Enabled {
		return CheckResult{Name: "Telegram", Status: "⚠", Details: "  disabled; notifications go to the log"}
	}
	if len(tg.Recipients) == 0 {
		return CheckResult{Name: "Telegram", Status: "⚠", Details: "  enabled but no recipients are mapped to chats"}
	}
	return CheckResult{Name: "Telegram", Status: "✓"}
}

func checkGatewayPort(g config.GatewayConfig) CheckResult {
	ln, err := net.Listen("tcp", g.Addr())
	if err != nil {
		return CheckResult{Name: "Gateway port", Status: "⚠", Details: fmt.Sprintf("  %s is in use: %v", g.Addr(), err)}
	}
	ln.Close()
	return CheckResult{Name: "Gateway port", Status: "✓"}
}
