// Copyright 2025-2026 Daniel Villamizar

// Package qrterm renders pairing challenges as QR codes on the terminal.
package qrterm

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/dvillamizar/warelay/pkg/relay"
)

// Presenter writes a scannable QR block to the terminal. Fire-and-forget:
// rendering failures are logged and swallowed.
type Presenter struct {
	out io.Writer
	log zerolog.Logger
}

var _ relay.Presenter = (*Presenter)(nil)

func New(log zerolog.Logger) *Presenter {
	return &Presenter{
		out: os.Stdout,
		log: log.With().Str("component", "qrterm").Logger(),
	}
}

func (p *Presenter) Present(code string) {
	q, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to render pairing code")
		return
	}
	fmt.Fprintln(p.out, "Scan this QR code with WhatsApp on the main phone:")
	fmt.Fprint(p.out, q.ToSmallString(false))
}
