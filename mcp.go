package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"excaliview/internal/config"
	mcpserver "excaliview/internal/mcp"
	"excaliview/internal/render"
	"excaliview/internal/storage"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve drawing tools to AI agents over MCP on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		srv := mcpserver.New(mcpserver.Deps{
			Codec:     newCodec(cfg),
			Extractor: render.New(slog.Default().With("component", "render")),
			Files:     storage.NewFileStore(),
			Logger:    slog.Default().With("component", "mcp"),
		})
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
