package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/neurorouter"

	"github.com/ppiankov/dailyforge/internal/automation"
	"github.com/ppiankov/dailyforge/internal/config"
)

// loadSettings reads the config file and applies flags the user set
// explicitly on top of it.
func loadSettings(cmd *cobra.Command, tuiMode string, runTimeout time.Duration) (*config.Settings, error) {
	cfg, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("tui") {
		cfg.TUI = tuiMode
	}
	if cmd.Flags().Changed("run-timeout") {
		cfg.RunTimeout = runTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runAutomation(ctx context.Context, cfg *config.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	isTTY := isTerminal()

	opts := []automation.Option{
		automation.WithRunID(runID),
		automation.WithVersion(Version),
		automation.WithDisplay(resolveDisplay(cfg.TUI, isTTY), isTTY),
	}

	// nothing is started when the credential is missing; the run reports it
	if _, err := cfg.Credential(); err == nil && cfg.Proxy != nil && cfg.Proxy.Enabled {
		stopProxy, err := startProxy(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("proxy config: %w", err)
		}
		defer stopProxy()
		opts = append(opts, automation.WithToolServerEnv(map[string]string{
			"OPENAI_BASE_URL": cfg.Proxy.BaseURL(),
		}))
	}

	slog.Debug("run configured", "run_id", runID, "config", configFile, "display", resolveDisplay(cfg.TUI, isTTY))
	code := automation.New(cfg, opts...).Run(ctx)
	if code != automation.ExitOK {
		return &ExitError{Code: int(code)}
	}
	return nil
}

// startProxy starts the Responses API → Chat Completions proxy. A proxy that
// fails to listen is not fatal: another dailyforge run may already own the
// port.
func startProxy(pc *config.ProxyConfig) (func(), error) {
	proxyCfg, err := resolveProxyConfig(pc)
	if err != nil {
		return nil, err
	}
	srv := neurorouter.NewProxy(proxyCfg)
	if _, err := srv.Start(); err != nil {
		slog.Warn("proxy start failed (may already be running)", "error", err)
		return func() {}, nil
	}
	slog.Debug("proxy started", "listen", proxyCfg.Listen, "targets", len(proxyCfg.Targets))
	return func() {
		if err := srv.Stop(); err != nil {
			slog.Warn("proxy stop error", "error", err)
		}
	}, nil
}

// resolveProxyConfig converts config.ProxyConfig to neurorouter.ProxyConfig,
// resolving "env:VAR_NAME" references in API keys.
func resolveProxyConfig(pc *config.ProxyConfig) (neurorouter.ProxyConfig, error) {
	cfg := neurorouter.ProxyConfig{
		Listen:  pc.Listen,
		Targets: make(map[string]neurorouter.Target, len(pc.Targets)),
	}
	if cfg.Listen == "" {
		cfg.Listen = config.DefaultProxyListen
	}
	for name, t := range pc.Targets {
		apiKey, err := config.ResolveAPIKey(t.APIKey)
		if err != nil {
			return neurorouter.ProxyConfig{}, fmt.Errorf("target %q: %w", name, err)
		}
		cfg.Targets[name] = neurorouter.Target{
			BaseURL: t.BaseURL,
			APIKey:  apiKey,
		}
	}
	return cfg, nil
}

// resolveDisplay maps the auto display mode to a concrete one.
func resolveDisplay(mode string, isTTY bool) string {
	if mode == "" || mode == "auto" {
		if isTTY {
			return automation.DisplayFull
		}
		return automation.DisplayOff
	}
	return mode
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
