package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/treetilt-mcp/internal/config"
	"github.com/ironsheep/treetilt-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := newLogger(stderr, os.Getenv("TREETILT_LOG_LEVEL"), os.Getenv("TREETILT_LOG_FORMAT"))
	slog.SetDefault(logger)

	if len(args) == 0 {
		return runServe(ctx, nil, stderr, logger)
	}

	switch args[0] {
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "treetilt %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	case "--help", "-h", "help":
		printUsage(stdout)
		return 0
	case "serve":
		return runServe(ctx, args[1:], stderr, logger)
	case "analyze":
		return runAnalyze(ctx, args[1:], stdout, stderr, logger)
	case "risk":
		return runRisk(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `treetilt - tree trunk tilt and fall-risk analysis

Usage: treetilt <command> [options]

Commands:
  serve      Run the MCP server on stdin/stdout (default with no command)
  analyze    Analyze one or more mask images
  risk       Score a known tilt angle
  version    Print version information
  help       Print this help message

Analyze:
  treetilt analyze [-config file] [-species name] [-identification score]
                   [-multiplier m] [-workers n] [-json] [-color] files...

Risk:
  treetilt risk -angle degrees [-lines n] [-species name]
                [-identification score] [-multiplier m] [-json] [-color]

Environment variables:
  TREETILT_LOG_LEVEL=debug|info|warn|error   Log level (default info)
  TREETILT_LOG_FORMAT=json                   Log as JSON instead of text

Logs go to stderr. In serve mode stdout carries the MCP protocol;
configure the server in your MCP client (e.g., Claude Desktop).
`)
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil || level == "" {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(ctx context.Context, args []string, stderr io.Writer, logger *slog.Logger) int {
	fs := newFlagSet("serve", stderr)
	configPath := fs.String("config", "", "JSON config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	logger.Debug("starting MCP server", "version", Version, "build_time", BuildTime, "commit", GitCommit)
	srv, err := server.New(cfg, server.WithLogger(logger), server.WithVersion(Version))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return 1
	}
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		return 1
	}
	return 0
}
