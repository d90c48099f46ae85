// Copyright 2025-2026 Daniel Villamizar
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package relay implements the session lifecycle and relay engine that
// forwards every message received by the main WhatsApp identity to a
// secondary number.
//
// # Core Types
//
// [Supervisor] owns the connection state machine: credential loading,
// QR pairing presentation, disconnect classification and reconnection
// with capped exponential backoff. It holds the only reference to the
// live [Session] and replaces it on every reconnect cycle.
//
// [Classifier] filters raw inbound events. Self-originated events, the
// status broadcast channel and both configured identities are dropped
// before anything reaches the governor.
//
// [Governor] enforces the per-minute and per-hour outbound ceilings,
// suppresses duplicate text inside a sliding window and draws a
// randomized pacing delay before each dispatch. Window rollovers are
// explicit ticks so the whole thing tests without real timers.
//
// [Pipeline] dispatches admitted events: text with an origin annotation
// appended, media after streaming and reassembling the chunked body with
// the original caption, filename and MIME type preserved.
//
// # Loop Prevention
//
// Messages from the main identity are never relayed, under any payload
// kind. This is the anchor that keeps the relay from echoing its own
// traffic; the drop layers in Classifier must not be simplified or
// removed.
//
// # Known Limitation
//
// There is no durable outbox. Events denied by the governor or failed in
// dispatch are permanently lost; this is a deliberate simplicity
// trade-off.
//
// # Sub-packages
//
//   - credstore persists the opaque credential blob in SQLite.
//   - waproto binds the abstract Session to go.mau.fi/whatsmeow.
//   - qrterm renders pairing challenges as terminal QR codes.
package relay
