// Lodestar: objective graph and conversation memory MCP server.
//
// Lodestar keeps a versioned graph of objectives edited through JSON
// Patch, and builds day/week/month summaries of branching conversations
// so a client can carry long histories in a small context.
//
// Usage:
//
//	lodestar serve [config.yaml]   # Start MCP server (stdio transport)
//	lodestar version               # Print the version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/lodestar/internal/config"
	"github.com/HendryAvila/lodestar/internal/logging"
	lodestar "github.com/HendryAvila/lodestar/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		configPath := ""
		if len(os.Args) > 2 {
			configPath = os.Args[2]
		}
		if err := run(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("lodestar v%s\n", lodestar.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	s, cleanup, err := lodestar.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdio := server.NewStdioServer(s)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutting down", zap.Error(ctx.Err()))
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Lodestar v%s: objective graph and conversation memory MCP server

Usage:
  lodestar serve [config.yaml]   Start the MCP server (stdio transport)
  lodestar version               Print the version

Configuration:
  Settings come from the YAML file (or $%s), a .env file, and
  LODESTAR_* environment variables. Data lives in ~/.lodestar by default.

  Add to your MCP client config:

  {
    "mcpServers": {
      "lodestar": {
        "command": "lodestar",
        "args": ["serve"]
      }
    }
  }
`, lodestar.Version, config.EnvConfigFile)
}
