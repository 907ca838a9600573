// Package cli provides CLI commands for tradeflow.
package cli

import (
	gocontext "context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/config"
	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/logging"
	"github.com/example/tradeflow/internal/wire"
)

// Global flag values for the current CLI invocation.
var (
	globalActorID    string
	globalRole       string
	globalConfigPath string
	globalLogLevel   string
)

// AddGlobalFlags registers the persistent flags every command shares.
func AddGlobalFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&globalActorID, "as", os.Getenv("TRADEFLOW_USER"), "Act as this user ID (default $TRADEFLOW_USER)")
	flags.StringVar(&globalRole, "role", "", "Act in this role: requester or provider")
	flags.StringVar(&globalConfigPath, "config", "", "Config file (default ~/.tradeflow/config.json)")
	flags.StringVar(&globalLogLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

// Bootstrap loads configuration and installs the logger. Wire it as the
// root command's PersistentPreRunE.
func Bootstrap(cmd *cobra.Command, args []string) error {
	path := globalConfigPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	if dbPath := os.Getenv("TRADEFLOW_DB_PATH"); dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if err := logging.Configure(cfg.Log, globalLogLevel); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	wire.Configure(cfg)
	return nil
}

// GetActorID returns the user the CLI is acting as.
func GetActorID() string {
	return strings.TrimSpace(globalActorID)
}

// NewContext creates a context.Background() with the current actor embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if actor := GetActorID(); actor != "" {
		ctx = ctxutil.WithActorID(ctx, actor)
	}
	if globalRole != "" {
		ctx = ctxutil.WithRole(ctx, globalRole)
	}
	return ctx
}

// requireActor returns the acting user or an error naming the flag to set.
func requireActor() (string, error) {
	actor := GetActorID()
	if actor == "" {
		return "", fmt.Errorf("no user set: pass --as <user-id> or export TRADEFLOW_USER")
	}
	return actor, nil
}

// Finish waits briefly for push notifications still being delivered so a
// short-lived command does not exit under them.
func Finish() {
	ctx, cancel := gocontext.WithTimeout(gocontext.Background(), wire.Config().Notify.Timeout())
	defer cancel()
	if err := wire.DrainNotifications(ctx); err != nil {
		slog.Warn("exiting with notifications still in flight", "error", err)
	}
}
