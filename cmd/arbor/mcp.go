package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask, answer and get_state tools over MCP",
	Long:  `Runs a Model Context Protocol server on stdio, or over SSE with --sse.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		server := mcp.NewServer(app.Engine, app.Logger)

		addr, _ := cmd.Flags().GetString("sse")
		if addr == "" {
			return server.ServeStdio()
		}
		baseURL, _ := cmd.Flags().GetString("base-url")
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.ServeSSE(ctx, addr, baseURL)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("sse", "", "Serve over SSE on this address instead of stdio (e.g. :8090)")
	mcpCmd.Flags().String("base-url", "http://localhost:8090", "Public base URL announced to SSE clients")
}
