// Warden supervisor server — accepts agent connections, enforces per-child
// screen-time policy, and serves the parent dashboard API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wardenhq/warden/pkg/api"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/gateway"
	"github.com/wardenhq/warden/pkg/notify"
	"github.com/wardenhq/warden/pkg/oracle"
	"github.com/wardenhq/warden/pkg/store"
	"github.com/wardenhq/warden/pkg/supervisor"
	"github.com/wardenhq/warden/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting warden",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	httpPort := getEnv("HTTP_PORT", cfg.System.HTTPPort)

	// 2. Open the state store
	st := store.New(cfg.System.StatePath)

	// 3. Oracle client (verdict checks with cache fallback)
	oracleClient := oracle.NewClient(cfg.System.Oracle.BaseURL, cfg.System.Oracle.VerdictTTLOrDefault())

	// 4. Slack parent notifications (nil service disables cleanly)
	var notifier *notify.Service

	// 5. Supervisor core; the notifier's enabled check needs the supervisor's
	// live settings, so wire it in two steps.
	sup, err := supervisor.New(st, oracleClient, oracleClient, nil, nil)
	if err != nil {
		slog.Error("Failed to restore supervisor state", "error", err)
		os.Exit(1)
	}

	if cfg.System.Slack != nil && (cfg.System.Slack.Enabled == nil || *cfg.System.Slack.Enabled) {
		tokenEnv := cfg.System.Slack.TokenEnv
		if tokenEnv == "" {
			tokenEnv = "SLACK_TOKEN"
		}
		notifier = notify.NewService(notify.ServiceConfig{
			Token:        os.Getenv(tokenEnv),
			Channel:      cfg.System.Slack.Channel,
			DashboardURL: getEnv("DASHBOARD_URL", ""),
		}, func() bool { return sup.Settings().NotifyParent })
		if notifier != nil {
			slog.Info("Slack notifications enabled", "channel", cfg.System.Slack.Channel)
		}
	}

	hub := api.NewHub(api.NewSupervisorCatchup(sup), 10*time.Second)
	sup.SetNotifier(notifier)
	sup.SetBroadcaster(hub)

	// 6. Agent gateway, wired to the supervisor's event handler
	gw, err := gateway.New(sup.SettingsFn(), sup.HandleGatewayEvent)
	if err != nil {
		slog.Error("Failed to create agent gateway", "error", err)
		os.Exit(1)
	}
	sup.AttachGateway(gw)

	// 7. Oracle stateChange push feed (optional)
	var feed *oracle.Feed
	if cfg.System.Oracle.FeedURL != "" {
		feed = oracle.NewFeed(cfg.System.Oracle.FeedURL, func(childID string) {
			oracleClient.Invalidate(childID)
			sup.OnOracleStateChange(childID)
		})
		feed.Start(ctx)
		defer feed.Stop()
		slog.Info("Oracle feed subscription started", "url", cfg.System.Oracle.FeedURL)
	}

	// 8. Start monitoring
	if err := sup.Start(ctx); err != nil {
		slog.Error("Failed to start supervisor", "error", err)
		os.Exit(1)
	}

	// 9. HTTP server (non-blocking)
	httpServer := api.NewServer(sup, gw, hub, cfg.System.AllowedWSOrigins)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Warden started successfully")

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: stop accepting HTTP first, then drain the
	// supervisor (cancels timers, removes monitors, persists state).
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Supervisor stopped gracefully")
	case <-time.After(15 * time.Second):
		slog.Warn("Supervisor shutdown timeout exceeded")
	}

	slog.Info("Shutdown complete")
}
