package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"excaliview/internal/codec"
	"excaliview/internal/config"
	mcpserver "excaliview/internal/mcp"
	"excaliview/internal/render"
	"excaliview/internal/storage"
)

var convertExport bool

var convertCmd = &cobra.Command{
	Use:   "convert [input] [output]",
	Short: "Convert a drawing between .excalidraw, .svg and .png",
	Long: `Convert decodes input and writes it to output; both formats follow the
file extensions. Images keep the editable scene unless --export is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		c := newCodec(cfg)
		res, err := mcpserver.Convert(cmd.Context(), c, storage.NewFileStore(), args[0], args[1], convertExport)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d elements, %d bytes\n", args[1], res.Elements, res.Bytes)
		return nil
	},
}

// newCodec builds the headless codec used outside the window.
func newCodec(cfg config.Config) *codec.Codec {
	engine := render.New(slog.Default().With("component", "render"))
	return codec.New(engine, engine,
		codec.WithLogger(slog.Default().With("component", "codec")),
		codec.WithExportLayout(cfg.ExportPadding, cfg.ExportScale),
	)
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().BoolVar(&convertExport, "export", false, "Write an image-only file without the editable scene")
}
