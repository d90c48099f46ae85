// Copyright 2025-2026 Daniel Villamizar

package waproto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/dvillamizar/warelay/pkg/relay"
)

// session adapts a whatsmeow.Client to relay.Session.
type session struct {
	client   *whatsmeow.Client
	handlers relay.Handlers
	log      zerolog.Logger
}

var _ relay.Session = (*session)(nil)

func (s *session) Connect(ctx context.Context) error {
	// The QR channel must be opened before Connect, and only exists for
	// devices that have never paired.
	if s.client.Store.ID == nil {
		qrChan, err := s.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("open qr channel: %w", err)
		}
		go s.watchQR(qrChan)
	}

	s.emit(relay.ConnectionUpdate{State: relay.StateConnecting})
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (s *session) watchQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			s.emit(relay.ConnectionUpdate{State: relay.StatePairing, QRCode: item.Code})
		case "success":
			// Credential persistence is driven by the PairSuccess event.
		default:
			s.log.Warn().Str("event", item.Event).Msg("QR channel ended without pairing")
		}
	}
}

func (s *session) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		if id := s.client.Store.ID; id != nil {
			s.emitCredentials(*id)
		}
		s.emit(relay.ConnectionUpdate{State: relay.StateOpen})
	case *events.PairSuccess:
		s.emitCredentials(e.ID)
	case *events.LoggedOut:
		s.emit(relay.ConnectionUpdate{State: relay.StateClosed, LoggedOut: true})
	case *events.StreamError:
		// A transport-stream fault is equivalent to a close: force the
		// teardown so the supervisor runs its reconnect path.
		s.End()
		s.emit(relay.ConnectionUpdate{
			State: relay.StateClosed,
			Err:   fmt.Errorf("stream error: %s", e.Code),
		})
	case *events.Disconnected:
		s.emit(relay.ConnectionUpdate{State: relay.StateClosed})
	case *events.Message:
		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(convertMessage(e))
		}
	}
}

func (s *session) emit(u relay.ConnectionUpdate) {
	if s.handlers.OnConnection != nil {
		s.handlers.OnConnection(u)
	}
}

func (s *session) emitCredentials(jid types.JID) {
	blob, err := json.Marshal(credBlob{
		JID:          jid.ToNonAD().String(),
		RegisteredAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode credential blob")
		return
	}
	if s.handlers.OnCredentials != nil {
		s.handlers.OnCredentials(blob)
	}
}

// End disconnects without emitting a close update; whatsmeow only fires
// Disconnected for unexpected socket loss.
func (s *session) End() {
	s.client.Disconnect()
}

func (s *session) Logout(ctx context.Context) error {
	return s.client.Logout()
}

func (s *session) SendText(ctx context.Context, toJID, body string) error {
	to, err := types.ParseJID(toJID)
	if err != nil {
		return fmt.Errorf("parse destination jid: %w", err)
	}
	_, err = s.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: ptr.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (s *session) SendMedia(ctx context.Context, toJID string, m relay.OutboundMedia) error {
	to, err := types.ParseJID(toJID)
	if err != nil {
		return fmt.Errorf("parse destination jid: %w", err)
	}

	var mediaType whatsmeow.MediaType
	switch m.Kind {
	case relay.KindImage:
		mediaType = whatsmeow.MediaImage
	case relay.KindVideo:
		mediaType = whatsmeow.MediaVideo
	case relay.KindDocument:
		mediaType = whatsmeow.MediaDocument
	default:
		return fmt.Errorf("unsupported outbound media kind %s", m.Kind)
	}

	up, err := s.client.Upload(ctx, m.Data, mediaType)
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	msg := &waE2E.Message{}
	switch m.Kind {
	case relay.KindImage:
		msg.ImageMessage = &waE2E.ImageMessage{
			Caption:       ptr.Ptr(m.Caption),
			Mimetype:      ptr.Ptr(m.MimeType),
			URL:           ptr.Ptr(up.URL),
			DirectPath:    ptr.Ptr(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    ptr.Ptr(up.FileLength),
		}
	case relay.KindVideo:
		msg.VideoMessage = &waE2E.VideoMessage{
			Caption:       ptr.Ptr(m.Caption),
			Mimetype:      ptr.Ptr(m.MimeType),
			URL:           ptr.Ptr(up.URL),
			DirectPath:    ptr.Ptr(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    ptr.Ptr(up.FileLength),
		}
	case relay.KindDocument:
		msg.DocumentMessage = &waE2E.DocumentMessage{
			Title:         ptr.Ptr(m.Filename),
			FileName:      ptr.Ptr(m.Filename),
			Caption:       ptr.Ptr(m.Caption),
			Mimetype:      ptr.Ptr(m.MimeType),
			URL:           ptr.Ptr(up.URL),
			DirectPath:    ptr.Ptr(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    ptr.Ptr(up.FileLength),
		}
	}

	if _, err := s.client.SendMessage(ctx, to, msg); err != nil {
		return fmt.Errorf("send media: %w", err)
	}
	return nil
}

// mediaRef wraps the downloadable proto message for lazy retrieval.
type mediaRef struct {
	msg whatsmeow.DownloadableMessage
}

func (s *session) DownloadMedia(ctx context.Context, ref relay.MediaRef) (relay.MediaStream, error) {
	r, ok := ref.(mediaRef)
	if !ok {
		return nil, fmt.Errorf("foreign media ref %T", ref)
	}
	data, err := s.client.Download(r.msg)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return &byteStream{data: data}, nil
}

// byteStream serves a fully downloaded body as a single-chunk stream.
type byteStream struct {
	data []byte
	done bool
}

func (b *byteStream) Next(ctx context.Context) ([]byte, error) {
	if b.done {
		return nil, io.EOF
	}
	b.done = true
	return b.data, nil
}
