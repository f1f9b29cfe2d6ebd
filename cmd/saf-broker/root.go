package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/secure-app-framework/saf-broker/application/config"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	workspace  string
	auditPath  string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "saf-broker",
		Short: "Capability broker for sandboxed WebAssembly components",
		Long: `saf-broker hosts untrusted WebAssembly components. Components reach the
outside world only through a small import surface (fs, net, log, time,
rand). Paths are confined to one workspace directory, fetches are checked
against a domain allowlist, and every granted operation is appended to a
tamper-evident audit log.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "Path to broker config YAML")
	flags.StringVarP(&g.workspace, "workspace", "w", "", "Workspace directory (overrides config)")
	flags.StringVar(&g.auditPath, "audit", "", "Audit log path (overrides config)")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&g.logFormat, "log-format", "", "Log format: text, json")

	root.AddCommand(
		newRunCmd(g),
		newDemoCmd(g),
		newAuditCmd(),
		newWorkspaceCmd(),
		newConfigCmd(g),
	)
	return root
}

// loadConfig reads --config (or defaults) and applies flag overrides.
func (g *globalFlags) loadConfig() (config.BrokerConfig, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return cfg, err
		}
	}
	if g.workspace != "" {
		cfg.Workspace = g.workspace
	}
	if g.auditPath != "" {
		cfg.Audit.Path = g.auditPath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	return cfg, cfg.Validate()
}

// newLogger builds the operational logger described by cfg.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
