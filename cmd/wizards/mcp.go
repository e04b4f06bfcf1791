package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aretw0/wizards/internal/cli"
	"github.com/aretw0/wizards/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes drawers as MCP tools so AI agents can open them, ask for
suggestions and read explanations.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cfg, logger, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		if cmd.Flags().Changed("transport") {
			cfg.MCP.Transport, _ = cmd.Flags().GetString("transport")
		}
		if cmd.Flags().Changed("port") {
			cfg.MCP.Port, _ = cmd.Flags().GetInt("port")
		}

		srv := mcp.NewServer(engine.Sessions,
			mcp.WithLogger(logger),
			mcp.WithTemplates(engine.Templates),
		)

		switch cfg.MCP.Transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting MCP server", "transport", "stdio")
			return srv.ServeStdio()
		case "sse":
			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()
			logger.Info("Starting MCP server", "transport", "sse", "port", cfg.MCP.Port)
			return srv.ServeSSE(sigCtx, cfg.MCP.Port)
		default:
			return fmt.Errorf("unknown transport %q (want stdio or sse)", cfg.MCP.Transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport to use: stdio or sse")
	mcpCmd.Flags().Int("port", 8081, "Port for the sse transport")
}
