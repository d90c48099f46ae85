// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"context"
)

// ConnectionState identifies where a session is in its lifecycle.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StatePairing
	StateOpen
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StatePairing:
		return "pairing"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionUpdate is emitted by a Session whenever its lifecycle changes.
// QRCode is set only for StatePairing updates. LoggedOut marks a StateClosed
// update as an explicit, non-recoverable logout; every other close is
// treated as recoverable.
type ConnectionUpdate struct {
	State     ConnectionState
	QRCode    string
	LoggedOut bool
	Err       error
}

// Handlers are the callbacks a Session invokes as the underlying protocol
// layer emits events. The session calls them sequentially, never
// concurrently with each other.
type Handlers struct {
	OnConnection  func(ConnectionUpdate)
	OnCredentials func(creds []byte)
	OnMessage     func(RawEvent)
}

// OutboundMedia is a fully reassembled media body ready for dispatch.
type OutboundMedia struct {
	Kind     Kind
	Data     []byte
	MimeType string
	Filename string
	Caption  string
}

// MediaStream yields the chunks of a media body in delivery order.
// Next returns io.EOF once the stream is exhausted.
type MediaStream interface {
	Next(ctx context.Context) ([]byte, error)
}

// Session is the live handle to one authenticated connection with the
// messaging network. It is owned exclusively by the Supervisor and replaced
// on every reconnect cycle.
type Session interface {
	// Connect starts the connection attempt. Lifecycle progress is
	// reported asynchronously through the Handlers passed to Dial.
	Connect(ctx context.Context) error
	// End tears the session down. Safe to call more than once; an
	// intentional End does not emit a StateClosed update.
	End()
	// Logout explicitly unregisters the session with the network,
	// invalidating the stored credentials.
	Logout(ctx context.Context) error

	SendText(ctx context.Context, toJID, body string) error
	SendMedia(ctx context.Context, toJID string, media OutboundMedia) error
	DownloadMedia(ctx context.Context, ref MediaRef) (MediaStream, error)
}

// Dialer creates sessions from persisted credentials. A nil or empty creds
// slice starts an unauthenticated session that emits pairing challenges.
type Dialer interface {
	Dial(ctx context.Context, creds []byte, h Handlers) (Session, error)
}

// Presenter renders a pairing challenge for the operator to scan.
type Presenter interface {
	Present(qr string)
}
