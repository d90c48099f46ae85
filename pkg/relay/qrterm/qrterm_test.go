// Copyright 2025-2026 Daniel Villamizar

package qrterm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPresent_WritesScannableBlock(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := &Presenter{out: &buf, log: zerolog.Nop()}

	p.Present("2@ABCDEF==,pairing-ref")

	out := buf.String()
	if !strings.Contains(out, "Scan this QR code") {
		t.Error("missing operator instruction")
	}
	if strings.Count(out, "\n") < 10 {
		t.Errorf("output does not look like a QR block:\n%s", out)
	}
}

func TestPresent_RenderFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := &Presenter{out: &buf, log: zerolog.Nop()}

	// Too much data for any QR version; must not panic.
	p.Present(strings.Repeat("x", 8000))
	if buf.Len() != 0 {
		t.Error("nothing should be written when rendering fails")
	}
}
