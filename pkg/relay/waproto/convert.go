// Copyright 2025-2026 Daniel Villamizar

package waproto

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/dvillamizar/warelay/pkg/relay"
)

// convertMessage maps a whatsmeow message event onto the relay's raw event
// shape, tagging the payload with exactly one variant.
func convertMessage(evt *events.Message) relay.RawEvent {
	return relay.RawEvent{
		Sender:   evt.Info.Sender.ToNonAD().String(),
		Chat:     evt.Info.Chat.String(),
		FromMe:   evt.Info.IsFromMe,
		IsStatus: evt.Info.Chat == types.StatusBroadcastJID,
		Payload:  convertPayload(evt.Message),
	}
}

// convertPayload probes the mutually exclusive waE2E message variants in a
// fixed order. Anything that matches none of them is tagged unsupported.
func convertPayload(msg *waE2E.Message) relay.Payload {
	switch {
	case msg == nil:
		return relay.UnsupportedPayload{Description: "empty"}
	case msg.Conversation != nil:
		return relay.TextPayload{Body: msg.GetConversation()}
	case msg.ExtendedTextMessage != nil:
		return relay.TextPayload{Body: msg.GetExtendedTextMessage().GetText(), Extended: true}
	case msg.ImageMessage != nil:
		img := msg.GetImageMessage()
		return relay.MediaPayload{
			MediaKind: relay.KindImage,
			Caption:   img.GetCaption(),
			MimeType:  img.GetMimetype(),
			Ref:       mediaRef{msg: img},
		}
	case msg.DocumentMessage != nil:
		doc := msg.GetDocumentMessage()
		return relay.MediaPayload{
			MediaKind: relay.KindDocument,
			Filename:  doc.GetFileName(),
			MimeType:  doc.GetMimetype(),
			Ref:       mediaRef{msg: doc},
		}
	case msg.VideoMessage != nil:
		vid := msg.GetVideoMessage()
		return relay.MediaPayload{
			MediaKind: relay.KindVideo,
			Caption:   vid.GetCaption(),
			MimeType:  vid.GetMimetype(),
			Ref:       mediaRef{msg: vid},
		}
	default:
		return relay.UnsupportedPayload{Description: describeUnknown(msg)}
	}
}

// describeUnknown names a few recognizable but unrelayable variants so the
// drop log says something useful.
func describeUnknown(msg *waE2E.Message) string {
	switch {
	case msg.AudioMessage != nil:
		return "audio"
	case msg.StickerMessage != nil:
		return "sticker"
	case msg.ReactionMessage != nil:
		return "reaction"
	case msg.ProtocolMessage != nil:
		return "protocol"
	default:
		return "unknown"
	}
}
