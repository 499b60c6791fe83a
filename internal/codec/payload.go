package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"excaliview/internal/domain"
)

// Payload is the text-safe shape a drawing takes on the bridge.
// Exactly one of Data, Blob or Base64 is set, matching Format.
type Payload struct {
	Format Format           `json:"format"`
	Data   *domain.Document `json:"data,omitempty"`
	Blob   string           `json:"blob,omitempty"`
	Base64 string           `json:"base64,omitempty"`
}

// Blob is binary data tagged with its media type.
type Blob struct {
	MIMEType string
	Data     []byte
}

// PayloadFromBytes wraps file contents for a load request.
func PayloadFromBytes(format Format, raw []byte) (Payload, error) {
	switch format {
	case FormatJSON:
		var doc domain.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Payload{}, fmt.Errorf("parse json drawing: %w", err)
		}
		return Payload{Format: format, Data: &doc}, nil
	case FormatSVG:
		return Payload{Format: format, Blob: string(raw)}, nil
	case FormatPNG:
		return Payload{Format: format, Base64: base64.StdEncoding.EncodeToString(raw)}, nil
	}
	return Payload{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Bytes returns what should be written to disk for this payload.
func (p Payload) Bytes() ([]byte, error) {
	switch p.Format {
	case FormatJSON:
		if p.Data == nil {
			return nil, fmt.Errorf("json payload has no document")
		}
		return json.MarshalIndent(p.Data, "", "  ")
	case FormatSVG:
		return []byte(p.Blob), nil
	case FormatPNG:
		return decodeBase64Image(p.Base64)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, p.Format)
}

// decodeBase64Image accepts raw base64 or a data URI.
func decodeBase64Image(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("invalid data URL")
		}
		s = after
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}
