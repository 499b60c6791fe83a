package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned for a format name outside json/svg/png.
var ErrUnknownFormat = errors.New("unknown format")

// Format names a wire format. The string values are what crosses the bridge.
type Format string

const (
	FormatJSON Format = "json"
	FormatSVG  Format = "svg"
	FormatPNG  Format = "png"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(name)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

func (f Format) Valid() bool {
	switch f {
	case FormatJSON, FormatSVG, FormatPNG:
		return true
	}
	return false
}

// IsImage reports whether the format can carry an embedded scene.
func (f Format) IsImage() bool {
	return f == FormatSVG || f == FormatPNG
}

func (f Format) MIMEType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	}
	return "application/json"
}

// FormatFromFilename infers the format from a path or URI. Anything that is
// not .svg or .png is treated as JSON.
func FormatFromFilename(name string) Format {
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".png"):
		return FormatPNG
	case strings.HasSuffix(name, ".svg"):
		return FormatSVG
	}
	return FormatJSON
}
