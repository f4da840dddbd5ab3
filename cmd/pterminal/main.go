// Package main is the entry point for the pterminal session engine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/pterminal/internal/app"
	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/logging"
	"github.com/dshills/pterminal/internal/renderer/backend"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type flags struct {
	configPath    string
	socketPath    string
	websocketAddr string
	logLevel      string
	logFile       string
	preview       bool
	watch         bool
	noControl     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "pterminal",
		Short: "pterminal - terminal session engine",
		Long: "pterminal runs shells in split-pane workspaces and serves a JSON-RPC\n" +
			"control surface on a unix socket. Use pterminal-cli to drive it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "path to configuration file")
	fl.StringVar(&f.socketPath, "socket", "", "control socket path (default from config)")
	fl.StringVar(&f.websocketAddr, "websocket", "", "loopback address for the WebSocket bridge, e.g. 127.0.0.1:7681")
	fl.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fl.StringVar(&f.logFile, "log-file", "", "write logs to this file instead of stderr")
	fl.BoolVar(&f.preview, "preview", false, "draw frames on this terminal")
	fl.BoolVar(&f.watch, "watch", true, "reload the config file when it changes")
	fl.BoolVar(&f.noControl, "no-control", false, "do not open the control socket")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print pterminal version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pterminal %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", date)
		},
	}
}

func run(parent context.Context, f flags) error {
	if f.logLevel != "" {
		if _, ok := logging.ParseLevel(f.logLevel); !ok {
			return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", f.logLevel)
		}
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	logger, closeLog, err := newLogger(cfg, f)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := app.Options{
		ConfigPath:    f.configPath,
		Config:        cfg,
		SocketPath:    f.socketPath,
		WebSocketAddr: f.websocketAddr,
		NoControl:     f.noControl,
		Watch:         f.watch,
		Logger:        logger,
		Version:       version,
	}
	if f.preview {
		sink, err := backend.NewTerminalPreview(cfg.Font.CellWidth, cfg.Font.CellHeight)
		if err != nil {
			return fmt.Errorf("open preview: %w", err)
		}
		opts.Sink = sink
	}

	application, err := app.New(opts)
	if err != nil {
		if opts.Sink != nil {
			_ = opts.Sink.Close()
		}
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Shutdown()

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if !f.preview {
		if path := application.SocketPath(); path != "" {
			fmt.Fprintf(os.Stderr, "pterminal listening on %s\n", path)
		}
	}
	return application.Run(ctx)
}

// newLogger builds the session logger. The preview owns the terminal, so
// without a log file it logs nowhere.
func newLogger(cfg *config.Config, f flags) (*logging.Logger, func(), error) {
	lc := logging.DefaultConfig()
	lc.Level, _ = logging.ParseLevel(cfg.Log.Level)

	switch {
	case f.logFile != "":
		file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		lc.Output = file
		return logging.New(lc), func() { file.Close() }, nil
	case f.preview:
		lc.Output = io.Discard
	}
	return logging.New(lc), func() {}, nil
}
