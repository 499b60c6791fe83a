// Package embed stores a canonical scene document inside SVG and PNG files
// and reads it back. Both the exporter and the loader go through this
// package so the two sides can never disagree on the format.
package embed

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"excaliview/internal/domain"
)

// ErrNoScene is returned when a file carries no embedded scene.
var ErrNoScene = errors.New("embed: no scene found")

const (
	envelopeVersion = "1"
	encodingBase64  = "base64"
	encodingBString = "bstring"
)

// envelope wraps the document JSON. The web editor writes "bstring"
// (one byte per code point); we write base64 and read both.
type envelope struct {
	Version    string `json:"version"`
	Encoding   string `json:"encoding"`
	Compressed bool   `json:"compressed"`
	Encoded    string `json:"encoded"`
}

// Wrap compresses doc and returns the envelope JSON.
func Wrap(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return nil, fmt.Errorf("compress scene: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress scene: %w", err)
	}
	return json.Marshal(envelope{
		Version:    envelopeVersion,
		Encoding:   encodingBase64,
		Compressed: true,
		Encoded:    base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// Unwrap reverses Wrap. Text that is not an envelope but is itself a
// scene document (older exports) is returned unchanged.
func Unwrap(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("embed: parse envelope: %w", err)
	}
	if env.Encoded == "" {
		var probe struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &probe) == nil && probe.Type == domain.DocumentType {
			return data, nil
		}
		return nil, fmt.Errorf("embed: envelope has no payload")
	}

	var raw []byte
	switch env.Encoding {
	case encodingBase64:
		b, err := base64.StdEncoding.DecodeString(env.Encoded)
		if err != nil {
			return nil, fmt.Errorf("embed: decode payload: %w", err)
		}
		raw = b
	case encodingBString, "":
		raw = fromByteString(env.Encoded)
	default:
		return nil, fmt.Errorf("embed: unsupported encoding %q", env.Encoding)
	}

	if !env.Compressed {
		return raw, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("embed: inflate payload: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("embed: inflate payload: %w", err)
	}
	return out, nil
}

func fromByteString(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}
