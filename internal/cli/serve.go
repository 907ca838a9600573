package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tradeflow/internal/db"
	"github.com/example/tradeflow/internal/wire"
)

// ServeCmd returns the serve command, which runs the HTTP gateway.
func ServeCmd() *cobra.Command {
	var idle time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long: `Run the HTTP gateway with live change notifications at /subscribe.

Advisory conversations idle for longer than --triage-idle are dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if idle <= 0 {
				return fmt.Errorf("--triage-idle must be positive")
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			server := wire.Gateway()
			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("gateway server failed: %w", err)
				}
			}()
			fmt.Printf("tradeflow gateway running at http://%s\nPress Ctrl+C to stop.\n", server.Addr())

			ticker := time.NewTicker(idle / 4)
			defer ticker.Stop()

			var runErr error
		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case runErr = <-errCh:
					break loop
				case <-ticker.C:
					if n := wire.PruneTriage(idle); n > 0 {
						slog.Info("pruned idle triage conversations", "count", n)
					}
				}
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Warn("gateway shutdown failed", "error", err)
			}
			if err := wire.DrainNotifications(shutdownCtx); err != nil {
				slog.Warn("notifications still in flight at shutdown", "error", err)
			}
			wire.Notifier().Close()
			if err := db.Close(); err != nil {
				slog.Warn("database close failed", "error", err)
			}
			return runErr
		},
	}

	cmd.Flags().DurationVar(&idle, "triage-idle", 2*time.Hour, "Drop advisory conversations idle this long")
	return cmd
}
