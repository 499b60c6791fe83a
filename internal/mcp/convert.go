package mcpserver

import (
	"context"
	"fmt"

	"excaliview/internal/codec"
)

// ConvertResult describes a written conversion.
type ConvertResult struct {
	Elements int
	Bytes    int
}

// Convert decodes input and re-encodes it to output, choosing both formats
// from the file names. Shared by the convert_drawing tool and the CLI.
func Convert(ctx context.Context, c SceneCodec, files FileStore, input, output string, export bool) (ConvertResult, error) {
	data, err := files.Read(input)
	if err != nil {
		return ConvertResult{}, err
	}
	p, err := codec.PayloadFromBytes(codec.FormatFromFilename(input), data)
	if err != nil {
		return ConvertResult{}, err
	}
	scene, err := c.Decode(ctx, p)
	if err != nil {
		return ConvertResult{}, fmt.Errorf("decode %s: %w", input, err)
	}

	out, err := c.Encode(ctx, scene, codec.SaveOptions{Format: codec.FormatFromFilename(output), Export: export})
	if err != nil {
		return ConvertResult{}, fmt.Errorf("encode %s: %w", output, err)
	}
	raw, err := out.Bytes()
	if err != nil {
		return ConvertResult{}, err
	}
	if err := files.Write(output, raw); err != nil {
		return ConvertResult{}, err
	}
	return ConvertResult{Elements: len(scene.Elements), Bytes: len(raw)}, nil
}
