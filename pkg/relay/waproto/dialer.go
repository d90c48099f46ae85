// Copyright 2025-2026 Daniel Villamizar

// Package waproto binds the relay's abstract Session to the whatsmeow
// WhatsApp protocol library.
package waproto

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/dvillamizar/warelay/pkg/relay"
)

// credBlob is the opaque credential payload the supervisor persists. The
// relay core never inspects it; only this package encodes and decodes it.
type credBlob struct {
	JID          string    `json:"jid"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Dialer creates whatsmeow-backed sessions. The device container shares
// the credential store's SQLite database; whatsmeow keeps its key material
// in its own tables there.
type Dialer struct {
	container *sqlstore.Container
	log       zerolog.Logger
}

var _ relay.Dialer = (*Dialer)(nil)

func NewDialer(db *sql.DB, log zerolog.Logger) (*Dialer, error) {
	container := sqlstore.NewWithDB(db, "sqlite3",
		waLog.Zerolog(log.With().Str("component", "wa_store").Logger()))
	if err := container.Upgrade(); err != nil {
		return nil, fmt.Errorf("upgrade whatsmeow store: %w", err)
	}
	return &Dialer{container: container, log: log}, nil
}

// Dial builds a session around the device the credential blob points at,
// or a brand new device (triggering the pairing flow) when creds is empty.
func (d *Dialer) Dial(ctx context.Context, creds []byte, h relay.Handlers) (relay.Session, error) {
	var device *store.Device
	if len(creds) > 0 {
		var blob credBlob
		if err := json.Unmarshal(creds, &blob); err != nil {
			return nil, fmt.Errorf("decode credential blob: %w", err)
		}
		jid, err := types.ParseJID(blob.JID)
		if err != nil {
			return nil, fmt.Errorf("parse stored jid %q: %w", blob.JID, err)
		}
		device, err = d.container.GetDevice(jid)
		if err != nil {
			return nil, fmt.Errorf("load device for %s: %w", jid, err)
		}
		if device == nil {
			d.log.Warn().Str("jid", blob.JID).Msg("Stored credentials point at an unknown device, re-pairing")
		}
	}
	if device == nil {
		device = d.container.NewDevice()
	}

	client := whatsmeow.NewClient(device,
		waLog.Zerolog(d.log.With().Str("component", "wa_client").Logger()))
	sess := &session{
		client:   client,
		handlers: h,
		log:      d.log.With().Str("component", "wa_session").Logger(),
	}
	client.AddEventHandler(sess.handleEvent)
	return sess, nil
}
