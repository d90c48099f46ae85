// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"github.com/rs/zerolog"
)

// Classifier applies the relay's drop rules to raw inbound events and
// normalizes whatever survives. The rules form a multi-layer loop
// prevention system: self-originated events, broadcast/status events and
// events from the main identity are never relayed.
type Classifier struct {
	MainJID string
	// SecondaryJID, when set, drops events sent by the relay destination
	// itself so relayed copies cannot bounce back.
	SecondaryJID string
	Log          zerolog.Logger
}

// Classify returns the normalized event, or nil when the event must not be
// relayed. Drop rules are evaluated in order: own events first, then the
// status broadcast channel, then the privileged identities.
func (c *Classifier) Classify(raw RawEvent) *InboundEvent {
	if raw.FromMe {
		return nil
	}
	if raw.IsStatus {
		c.Log.Trace().Str("sender", raw.Sender).Msg("Ignoring status broadcast")
		return nil
	}
	if raw.Sender == c.MainJID {
		c.Log.Debug().Str("sender", raw.Sender).Msg("Ignoring main identity (loop prevention)")
		return nil
	}
	if c.SecondaryJID != "" && raw.Sender == c.SecondaryJID {
		c.Log.Debug().Str("sender", raw.Sender).Msg("Ignoring secondary identity (loop prevention)")
		return nil
	}
	if raw.Payload == nil {
		return nil
	}
	if u, ok := raw.Payload.(UnsupportedPayload); ok {
		c.Log.Debug().
			Str("sender", raw.Sender).
			Str("payload", u.Description).
			Msg("Ignoring unsupported payload variant")
		return nil
	}
	return &InboundEvent{Sender: raw.Sender, Payload: raw.Payload}
}
