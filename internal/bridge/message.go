// Package bridge carries save and load requests between the desktop host and
// the rendering surface. The link is two one-directional message channels;
// requests and responses are paired by a correlation token (the nonce).
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"excaliview/internal/codec"
)

var (
	// ErrClosed is returned once the link has been shut down.
	ErrClosed = errors.New("bridge closed")
	// ErrRemote wraps a failure reported by the surface in a save response.
	ErrRemote = errors.New("surface error")
)

// Kind names a message type on the wire.
type Kind string

const (
	KindInitialized  Kind = "initialized"
	KindSaveRequest  Kind = "save-request"
	KindSaveResponse Kind = "save-response"
	KindLoadRequest  Kind = "load-request"
)

// Message is the unit posted on a Channel. Body is kept as raw JSON so the
// link only ever carries text.
type Message struct {
	Kind  Kind            `json:"kind"`
	Nonce string          `json:"nonce,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// SaveRequest asks the surface to encode the live scene.
type SaveRequest struct {
	Format codec.Format `json:"format"`
	// Export produces an image-only artifact.
	Export bool `json:"export,omitempty"`
}

// SaveResponse is the surface's reply, tagged with the request nonce.
type SaveResponse struct {
	Data  *codec.Payload `json:"data,omitempty"`
	Nonce string         `json:"nonce"`
	Error string         `json:"error,omitempty"`
}

type initializedBody struct {
	Initialized bool `json:"initialized"`
}

func newMessage(kind Kind, nonce string, body any) (Message, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s body: %w", kind, err)
	}
	return Message{Kind: kind, Nonce: nonce, Body: raw}, nil
}
