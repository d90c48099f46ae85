// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// defaultDocumentName names document dispatches whose original carried no
// filename.
const defaultDocumentName = "documento"

// originAnnotation is the suffix appended to every relayed message so the
// secondary identity can tell who the original sender was.
func originAnnotation(sender string) string {
	return "\n\nReceived from: " + sender
}

// Pipeline dispatches admitted events to the secondary identity. Media
// bodies are streamed, reassembled in delivery order and re-dispatched
// with their original caption, filename and MIME type preserved.
type Pipeline struct {
	secondary string
	log       zerolog.Logger
}

func NewPipeline(cfg *Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		secondary: cfg.SecondaryJID,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Relay dispatches ev through sess. A failure is reported to the caller
// for logging; the event is considered lost, there is no retry and no
// durable outbox.
func (p *Pipeline) Relay(ctx context.Context, sess Session, ev *InboundEvent) error {
	switch payload := ev.Payload.(type) {
	case TextPayload:
		return sess.SendText(ctx, p.secondary, payload.Body+originAnnotation(ev.Sender))
	case MediaPayload:
		return p.relayMedia(ctx, sess, ev.Sender, payload)
	default:
		return fmt.Errorf("unrelayable payload kind %s", ev.Payload.Kind())
	}
}

func (p *Pipeline) relayMedia(ctx context.Context, sess Session, sender string, payload MediaPayload) error {
	stream, err := sess.DownloadMedia(ctx, payload.Ref)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	// Chunks must be concatenated in delivery order; no reordering.
	var buf bytes.Buffer
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read media chunk: %w", err)
		}
		buf.Write(chunk)
	}

	out := OutboundMedia{
		Kind:     payload.MediaKind,
		Data:     buf.Bytes(),
		MimeType: payload.MimeType,
	}
	switch payload.MediaKind {
	case KindDocument:
		out.Filename = payload.Filename
		if out.Filename == "" {
			out.Filename = defaultDocumentName
		}
		// Documents carry no caption of their own; the annotation stands
		// alone.
		out.Caption = strings.TrimLeft(originAnnotation(sender), "\n")
	default:
		out.Caption = payload.Caption + originAnnotation(sender)
	}

	p.log.Debug().
		Str("kind", payload.MediaKind.String()).
		Int("bytes", buf.Len()).
		Str("mime", out.MimeType).
		Msg("Dispatching reassembled media")
	return sess.SendMedia(ctx, p.secondary, out)
}
