package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"excaliview/internal/codec"
	"excaliview/internal/domain"
)

// Alerter shows a blocking, user-visible message.
type Alerter interface {
	Alert(title, message string)
}

// SceneCodec converts between the live scene and wire payloads.
type SceneCodec interface {
	Encode(ctx context.Context, s domain.Scene, opts codec.SaveOptions) (codec.Payload, error)
	Decode(ctx context.Context, p codec.Payload) (domain.Scene, error)
}

// SceneCell is the single owned copy of the live scene.
type SceneCell interface {
	Snapshot() domain.Scene
	Apply(s domain.Scene)
}

// Surface is the rendering side of the link. It handles one message at a
// time, so a load is never interleaved with an encode.
type Surface struct {
	in      Listener
	out     Poster
	scene   SceneCell
	codec   SceneCodec
	alerter Alerter
	puller  ScenePuller
	logger  *slog.Logger
}

func NewSurface(in Listener, out Poster, scene SceneCell, c SceneCodec, a Alerter, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Surface{in: in, out: out, scene: scene, codec: c, alerter: a, logger: logger}
}

// SetPuller makes every save refresh the scene cell from the editor before
// encoding.
func (s *Surface) SetPuller(p ScenePuller) {
	s.puller = p
}

// Run signals initialized and then serves requests until ctx is done or the
// inbound channel closes.
func (s *Surface) Run(ctx context.Context) error {
	init, err := newMessage(KindInitialized, "", initializedBody{Initialized: true})
	if err != nil {
		return err
	}
	if err := s.out.Post(ctx, init); err != nil {
		return fmt.Errorf("post initialized: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-s.in.Listen():
			if !ok {
				return nil
			}
			s.handle(ctx, m)
		}
	}
}

func (s *Surface) handle(ctx context.Context, m Message) {
	switch m.Kind {
	case KindSaveRequest:
		s.handleSave(ctx, m)
	case KindLoadRequest:
		s.handleLoad(ctx, m)
	default:
		s.logger.Warn("unexpected message from host", "kind", m.Kind)
	}
}

func (s *Surface) handleSave(ctx context.Context, m Message) {
	var req SaveRequest
	if err := json.Unmarshal(m.Body, &req); err != nil {
		s.logger.Error("bad save request", "nonce", m.Nonce, "error", err)
		return
	}
	if !req.Format.Valid() {
		s.unknownFormat(req.Format)
		return
	}

	if s.puller != nil {
		if err := s.puller.Pull(ctx); err != nil {
			s.logger.Warn("editor scene not refreshed, saving last mirrored scene", "nonce", m.Nonce, "error", err)
		}
	}

	resp := SaveResponse{Nonce: m.Nonce}
	payload, err := s.codec.Encode(ctx, s.scene.Snapshot(), codec.SaveOptions{Format: req.Format, Export: req.Export})
	if err != nil {
		s.logger.Error("encode failed", "nonce", m.Nonce, "format", req.Format, "error", err)
		resp.Error = err.Error()
	} else {
		resp.Data = &payload
	}

	out, err := newMessage(KindSaveResponse, m.Nonce, resp)
	if err != nil {
		s.logger.Error("build save response", "error", err)
		return
	}
	if err := s.out.Post(ctx, out); err != nil {
		s.logger.Error("post save response", "nonce", m.Nonce, "error", err)
	}
}

func (s *Surface) handleLoad(ctx context.Context, m Message) {
	var p codec.Payload
	if err := json.Unmarshal(m.Body, &p); err != nil {
		s.logger.Error("bad load request", "error", err)
		return
	}
	if !p.Format.Valid() {
		s.unknownFormat(p.Format)
		return
	}

	scene, err := s.codec.Decode(ctx, p)
	if err != nil {
		s.logger.Error("decode failed", "format", p.Format, "error", err)
		s.alerter.Alert("Could not load drawing", err.Error())
		return
	}
	s.scene.Apply(scene)
	s.logger.Debug("scene loaded", "format", p.Format, "elements", len(scene.Elements))
}

func (s *Surface) unknownFormat(f codec.Format) {
	s.logger.Error("unknown format", "format", f)
	s.alerter.Alert("Error", fmt.Sprintf("Unknown format %q, this is a bug", f))
}
