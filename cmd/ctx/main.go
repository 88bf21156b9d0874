package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hpungsan/ctx/internal/config"
	"github.com/hpungsan/ctx/internal/db"
	"github.com/hpungsan/ctx/internal/mcp"
	"github.com/hpungsan/ctx/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "lookup": true, "search": true,
	"get": true, "reindex": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _
   ___ | |_ __  __
  / __|| __|\ \/ /
 | (__ | |_  >  <
  \___| \__|/_/\_\

  Remember where your downloads came from

  Usage: ctx <command> [options]
         ctx --help

  MCP server mode requires piped input.`)
}

// newLogger builds the stderr logger. Unknown levels fall back to warn.
func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// resolveBaseDir picks CTX_HOME if set, else the per-user config directory.
func resolveBaseDir(env map[string]string) (string, error) {
	if dir := strings.TrimSpace(env[config.EnvHome]); dir != "" {
		return dir, nil
	}
	return config.DefaultBaseDir()
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil)
		os.Exit(exitCode(os.Stdout, app.Run(os.Args)))
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode(os.Args) && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'ctx --help' for usage.\n")
		os.Exit(exitFailure)
	}

	environ := config.Environ()
	baseDir, err := resolveBaseDir(environ)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine config directory: %v\n", err)
		os.Exit(exitUnexpected)
	}

	cfg, err := config.Load(baseDir, environ)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(exitUnexpected)
	}
	if cfg.HomeDir, err = os.UserHomeDir(); err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(exitUnexpected)
	}

	logger := newLogger(cfg.LogLevel, os.Stderr)

	database, err := db.Init(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", "path", cfg.DBPath, "err", err)
		os.Exit(exitUnexpected)
	}
	db.ConfigurePool(database, cfg)

	store := db.NewStore(context.Background(), database, logger)
	env := ops.NewEnv(store, cfg, logger)

	if isCLIMode(os.Args) {
		code := exitCode(os.Stdout, newCLIApp(env).Run(os.Args))
		database.Close()
		os.Exit(code)
	}

	// MCP server mode (default)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("ignoring unknown disabled_tools", "tools", unknown)
	}
	err = mcp.Run(env, Version)
	database.Close()
	if err != nil {
		logger.Error("mcp server stopped", "err", err)
		os.Exit(exitUnexpected)
	}
}
