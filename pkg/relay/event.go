// Copyright 2025-2026 Daniel Villamizar

package relay

// Kind enumerates the message payload variants the relay understands.
type Kind int

const (
	KindText Kind = iota
	KindExtendedText
	KindImage
	KindDocument
	KindVideo
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindExtendedText:
		return "extended-text"
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	case KindVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// IsMedia reports whether the kind carries a downloadable body.
func (k Kind) IsMedia() bool {
	switch k {
	case KindImage, KindDocument, KindVideo:
		return true
	default:
		return false
	}
}

// MediaRef is an opaque handle to a lazily downloadable media body. It is
// understood only by the Session implementation that produced it.
type MediaRef any

// Payload is the tagged union of message payload variants. Exactly one
// concrete type matches each inbound message.
type Payload interface {
	Kind() Kind
}

// TextPayload is a plain or extended (quoted / link-preview) text message.
type TextPayload struct {
	Body     string
	Extended bool
}

func (p TextPayload) Kind() Kind {
	if p.Extended {
		return KindExtendedText
	}
	return KindText
}

// MediaPayload is an image, document or video message. The body itself is
// not downloaded until the pipeline asks for it via Ref.
type MediaPayload struct {
	MediaKind Kind
	Caption   string
	Filename  string
	MimeType  string
	Ref       MediaRef
}

func (p MediaPayload) Kind() Kind { return p.MediaKind }

// UnsupportedPayload is anything that matched no known variant. It is
// logged and never relayed.
type UnsupportedPayload struct {
	Description string
}

func (p UnsupportedPayload) Kind() Kind { return KindUnsupported }

// RawEvent is a received protocol event before classification.
type RawEvent struct {
	Sender   string
	Chat     string
	FromMe   bool
	IsStatus bool
	Payload  Payload
}

// InboundEvent is a classified message accepted for the relay pipeline.
type InboundEvent struct {
	Sender  string
	Payload Payload
}

// Text returns the deduplicatable text content of the event. Media events
// return an empty string; they are never deduplicated.
func (e *InboundEvent) Text() string {
	if t, ok := e.Payload.(TextPayload); ok {
		return t.Body
	}
	return ""
}
