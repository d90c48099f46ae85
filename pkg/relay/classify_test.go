// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestClassifier() *Classifier {
	return &Classifier{
		MainJID:      "111@s.whatsapp.net",
		SecondaryJID: "222@s.whatsapp.net",
		Log:          zerolog.Nop(),
	}
}

func TestClassify_DropsOwnEvents(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()
	ev := c.Classify(RawEvent{
		Sender:  "999@s.whatsapp.net",
		FromMe:  true,
		Payload: TextPayload{Body: "hola"},
	})
	if ev != nil {
		t.Fatal("self-originated event should be dropped")
	}
}

func TestClassify_DropsStatusBroadcast(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()
	ev := c.Classify(RawEvent{
		Sender:   "333@s.whatsapp.net",
		IsStatus: true,
		Payload:  TextPayload{Body: "status update"},
	})
	if ev != nil {
		t.Fatal("status broadcast should be dropped")
	}
}

func TestClassify_DropsMainIdentityAllKinds(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	// Loop prevention must hold for every payload kind, not just text.
	payloads := []Payload{
		TextPayload{Body: "hola"},
		TextPayload{Body: "quoted", Extended: true},
		MediaPayload{MediaKind: KindImage, Ref: "img"},
		MediaPayload{MediaKind: KindDocument, Ref: "doc"},
		MediaPayload{MediaKind: KindVideo, Ref: "vid"},
	}
	for _, p := range payloads {
		if ev := c.Classify(RawEvent{Sender: "111@s.whatsapp.net", Payload: p}); ev != nil {
			t.Errorf("main identity %s event should be dropped", p.Kind())
		}
	}
}

func TestClassify_DropsSecondaryIdentity(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()
	if ev := c.Classify(RawEvent{Sender: "222@s.whatsapp.net", Payload: TextPayload{Body: "echo"}}); ev != nil {
		t.Fatal("secondary identity event should be dropped")
	}
}

func TestClassify_SecondaryAllowedWhenNotConfigured(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()
	c.SecondaryJID = ""
	if ev := c.Classify(RawEvent{Sender: "222@s.whatsapp.net", Payload: TextPayload{Body: "hola"}}); ev == nil {
		t.Fatal("secondary sender should pass when not configured as ignorable")
	}
}

func TestClassify_DropsUnsupported(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()
	if ev := c.Classify(RawEvent{Sender: "333@s.whatsapp.net", Payload: UnsupportedPayload{Description: "sticker"}}); ev != nil {
		t.Fatal("unsupported payload should be dropped")
	}
}

func TestClassify_DropsNilPayload(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()
	if ev := c.Classify(RawEvent{Sender: "333@s.whatsapp.net"}); ev != nil {
		t.Fatal("nil payload should be dropped")
	}
}

func TestClassify_NormalizesAcceptedEvent(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()
	raw := RawEvent{
		Sender: "333@s.whatsapp.net",
		Chat:   "333@s.whatsapp.net",
		Payload: MediaPayload{
			MediaKind: KindDocument,
			Filename:  "factura.pdf",
			MimeType:  "application/pdf",
			Ref:       "doc1",
		},
	}
	ev := c.Classify(raw)
	if ev == nil {
		t.Fatal("valid event should be accepted")
	}
	if ev.Sender != raw.Sender {
		t.Errorf("sender: got %q, want %q", ev.Sender, raw.Sender)
	}
	media, ok := ev.Payload.(MediaPayload)
	if !ok {
		t.Fatalf("payload type: got %T, want MediaPayload", ev.Payload)
	}
	if media.Filename != "factura.pdf" || media.MimeType != "application/pdf" {
		t.Errorf("payload metadata not preserved: %+v", media)
	}
}

func TestInboundEvent_Text(t *testing.T) {
	t.Parallel()
	textEv := &InboundEvent{Payload: TextPayload{Body: "hola", Extended: true}}
	if textEv.Text() != "hola" {
		t.Errorf("extended text content: got %q, want %q", textEv.Text(), "hola")
	}
	mediaEv := &InboundEvent{Payload: MediaPayload{MediaKind: KindImage}}
	if mediaEv.Text() != "" {
		t.Errorf("media text content: got %q, want empty", mediaEv.Text())
	}
}
