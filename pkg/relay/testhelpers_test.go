// Copyright 2025-2026 Daniel Villamizar
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MainJID = "111@s.whatsapp.net"
	cfg.SecondaryJID = "222@s.whatsapp.net"
	return cfg
}

func textEvent(body string) *InboundEvent {
	return &InboundEvent{
		Sender:  "333@s.whatsapp.net",
		Payload: TextPayload{Body: body},
	}
}

// fakeClock is an injectable wall clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentText struct {
	to   string
	body string
}

type sentMedia struct {
	to    string
	media OutboundMedia
}

// fakeSession records dispatches and serves canned media chunk streams.
// Tests drive the supervisor by invoking the Handlers captured at Dial.
type fakeSession struct {
	handlers Handlers
	creds    []byte

	mu          sync.Mutex
	texts       []sentText
	media       []sentMedia
	chunks      map[string][][]byte
	sendErr     error
	downloadErr error
	connectErr  error
	ended       bool
}

func (f *fakeSession) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeSession) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = true
}

func (f *fakeSession) Logout(ctx context.Context) error { return nil }

func (f *fakeSession) SendText(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, sentText{to: to, body: body})
	return nil
}

func (f *fakeSession) SendMedia(ctx context.Context, to string, m OutboundMedia) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.media = append(f.media, sentMedia{to: to, media: m})
	return nil
}

func (f *fakeSession) DownloadMedia(ctx context.Context, ref MediaRef) (MediaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	key, _ := ref.(string)
	return &chunkStream{chunks: f.chunks[key]}, nil
}

func (f *fakeSession) sentTexts() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentText, len(f.texts))
	copy(cp, f.texts)
	return cp
}

func (f *fakeSession) sentMedia() []sentMedia {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentMedia, len(f.media))
	copy(cp, f.media)
	return cp
}

func (f *fakeSession) wasEnded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

// chunkStream yields pre-cut chunks in order, then io.EOF.
type chunkStream struct {
	chunks [][]byte
	i      int
}

func (c *chunkStream) Next(ctx context.Context) ([]byte, error) {
	if c.i >= len(c.chunks) {
		return nil, io.EOF
	}
	chunk := c.chunks[c.i]
	c.i++
	return chunk, nil
}

// scriptedDialer hands out fake sessions and retains them so tests can
// drive their handlers.
type scriptedDialer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	dialErr  error
}

func (d *scriptedDialer) Dial(ctx context.Context, creds []byte, h Handlers) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	s := &fakeSession{handlers: h, creds: creds, chunks: map[string][][]byte{}}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *scriptedDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *scriptedDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[i]
}

// memStore is an in-memory CredentialStore.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(ctx context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.data[sessionID]
	if !ok {
		return nil, ErrNoCredentials
	}
	return blob, nil
}

func (m *memStore) Upsert(ctx context.Context, sessionID string, creds []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = creds
	return nil
}

func (m *memStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	m.deletes++
	return nil
}

func (m *memStore) has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[sessionID]
	return ok
}

func (m *memStore) deleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

// sleepRecorder replaces the supervisor's sleep so tests observe backoff
// waits without real time passing.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err() == nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]time.Duration, len(r.waits))
	copy(cp, r.waits)
	return cp
}

// presenterRecorder counts pairing codes shown to the operator.
type presenterRecorder struct {
	mu    sync.Mutex
	codes []string
}

func (p *presenterRecorder) Present(qr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, qr)
}

func (p *presenterRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.codes)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
