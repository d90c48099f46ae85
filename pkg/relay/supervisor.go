// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SessionID keys the single persisted credential row. The relay runs one
// logical session per process.
const SessionID = "primary"

// ErrNoCredentials is returned by a CredentialStore when no credentials
// have been persisted yet for a session id.
var ErrNoCredentials = errors.New("relay: no stored credentials")

// CredentialStore persists the opaque session-authentication blob keyed by
// session id. Upsert must be atomic from the store's perspective; writes
// are last-writer-wins.
type CredentialStore interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Upsert(ctx context.Context, sessionID string, creds []byte) error
	Delete(ctx context.Context, sessionID string) error
}

// connectGreeting is the one-shot confirmation sent to the secondary
// identity on the first successful open of the process lifetime.
const connectGreeting = "warelay online: messages received by the main number will be forwarded here."

// closeSignal carries the classification of a session close back to the
// establishment loop.
type closeSignal struct {
	loggedOut   bool
	qrExhausted bool
}

// Supervisor owns the session lifecycle: establishment, pairing, disconnect
// classification and reconnection with capped exponential backoff. It also
// drives the inbound classify → admit → relay pipeline; the protocol layer
// delivers events sequentially, so one event runs to completion (pacing
// delay and media download included) before the next begins.
type Supervisor struct {
	dialer     Dialer
	creds      CredentialStore
	presenter  Presenter
	gov        *Governor
	pipe       *Pipeline
	classifier Classifier
	cfg        *Config
	backoff    ReconnectPolicy
	log        zerolog.Logger

	// sleep is injectable so tests can observe backoff waits without
	// real time passing.
	sleep func(ctx context.Context, d time.Duration) bool

	mu                sync.Mutex
	running           bool
	greeted           bool
	session           Session
	qrAttempts        int
	reconnectAttempts int
}

func NewSupervisor(dialer Dialer, creds CredentialStore, presenter Presenter, gov *Governor, pipe *Pipeline, cfg *Config, log zerolog.Logger) *Supervisor {
	secondary := ""
	if cfg.IgnoreSecondary {
		secondary = cfg.SecondaryJID
	}
	return &Supervisor{
		dialer:    dialer,
		creds:     creds,
		presenter: presenter,
		gov:       gov,
		pipe:      pipe,
		classifier: Classifier{
			MainJID:      cfg.MainJID,
			SecondaryJID: secondary,
			Log:          log.With().Str("component", "classifier").Logger(),
		},
		cfg:     cfg,
		backoff: ReconnectPolicy{Base: cfg.BackoffBase(), Cap: cfg.BackoffCap()},
		log:     log.With().Str("component", "supervisor").Logger(),
		sleep:   sleepCtx,
	}
}

// Run establishes the session and keeps it alive until ctx is cancelled,
// the session is explicitly logged out, or the reconnect ceiling is hit.
// At most one Run is in flight per Supervisor; a call while another runs
// is a no-op.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("Session establishment already in flight, ignoring start request")
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		sig, err := s.establish(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Establishment failures are transient connection faults,
			// recovered through the same backoff path as a close.
			s.log.Error().Err(err).Msg("Session establishment failed")
		}

		switch {
		case sig.loggedOut:
			s.log.Warn().Msg("Session logged out, purging stored credentials; re-pairing required")
			if err := s.creds.Delete(ctx, SessionID); err != nil {
				s.log.Error().Err(err).Msg("Failed to delete credentials after logout")
			}
			return nil
		case sig.qrExhausted:
			// Authentication exhaustion is transient: restart the
			// establishment cycle from the top, no backoff, no attempt
			// consumed.
			s.log.Warn().
				Int("max_attempts", s.cfg.QRMaxAttempts).
				Msg("Pairing attempts exhausted, restarting establishment")
			continue
		}

		s.mu.Lock()
		s.reconnectAttempts++
		attempt := s.reconnectAttempts
		s.mu.Unlock()

		if attempt > s.cfg.ReconnectMaxAttempts {
			s.log.Error().
				Int("attempts", attempt-1).
				Msg("Reconnect attempts exhausted; manual restart required, relay is inert")
			<-ctx.Done()
			return ctx.Err()
		}

		wait := s.backoff.Delay(attempt)
		s.log.Info().
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Reconnecting after backoff")
		if !s.sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// establish dials one session and blocks until it closes or ctx ends.
func (s *Supervisor) establish(ctx context.Context) (closeSignal, error) {
	blob, err := s.creds.Get(ctx, SessionID)
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		return closeSignal{}, fmt.Errorf("load credentials: %w", err)
	}
	if len(blob) == 0 {
		s.log.Info().Msg("No stored credentials, starting unauthenticated pairing")
	}

	s.mu.Lock()
	s.qrAttempts = 0
	s.mu.Unlock()

	closeCh := make(chan closeSignal, 4)
	h := Handlers{
		OnConnection:  func(u ConnectionUpdate) { s.handleConnection(ctx, u, closeCh) },
		OnCredentials: func(creds []byte) { s.persistCredentials(ctx, creds) },
		OnMessage:     func(raw RawEvent) { s.handleMessage(ctx, raw) },
	}

	sess, err := s.dialer.Dial(ctx, blob, h)
	if err != nil {
		return closeSignal{}, fmt.Errorf("dial session: %w", err)
	}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	if err := sess.Connect(ctx); err != nil {
		sess.End()
		return closeSignal{}, fmt.Errorf("connect session: %w", err)
	}

	select {
	case sig := <-closeCh:
		sess.End()
		return sig, nil
	case <-ctx.Done():
		sess.End()
		return closeSignal{}, ctx.Err()
	}
}

func (s *Supervisor) handleConnection(ctx context.Context, u ConnectionUpdate, closeCh chan<- closeSignal) {
	switch u.State {
	case StatePairing:
		s.mu.Lock()
		s.qrAttempts++
		attempt := s.qrAttempts
		sess := s.session
		s.mu.Unlock()

		if attempt > s.cfg.QRMaxAttempts {
			signalClose(closeCh, closeSignal{qrExhausted: true})
			if sess != nil {
				sess.End()
			}
			return
		}
		s.log.Info().Int("attempt", attempt).Msg("Pairing challenge received, scan the code with the main phone")
		if s.presenter != nil && u.QRCode != "" {
			s.presenter.Present(u.QRCode)
		}

	case StateOpen:
		s.mu.Lock()
		s.reconnectAttempts = 0
		s.qrAttempts = 0
		first := !s.greeted
		s.greeted = true
		sess := s.session
		s.mu.Unlock()

		s.log.Info().Bool("first_open", first).Msg("Session open")
		if first && sess != nil {
			if err := sess.SendText(ctx, s.cfg.SecondaryJID, connectGreeting); err != nil {
				s.log.Warn().Err(err).Msg("Failed to send connect confirmation")
			}
		}

	case StateClosed:
		evt := s.log.Info()
		if u.Err != nil {
			evt = s.log.Warn().Err(u.Err)
		}
		evt.Bool("logged_out", u.LoggedOut).Msg("Session closed")
		signalClose(closeCh, closeSignal{loggedOut: u.LoggedOut})
	}
}

// handleMessage runs the classify → admit → relay pipeline for one event.
func (s *Supervisor) handleMessage(ctx context.Context, raw RawEvent) {
	ev := s.classifier.Classify(raw)
	if ev == nil {
		return
	}

	verdict := s.gov.Admit(ev)
	if !verdict.OK {
		s.log.Info().
			Str("sender", ev.Sender).
			Str("kind", ev.Payload.Kind().String()).
			Str("reason", string(verdict.Reason)).
			Msg("Relay denied")
		return
	}
	if verdict.Wait > 0 && !s.sleep(ctx, verdict.Wait) {
		return
	}

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return
	}
	if err := s.pipe.Relay(ctx, sess, ev); err != nil {
		s.log.Error().
			Err(err).
			Str("sender", ev.Sender).
			Str("kind", ev.Payload.Kind().String()).
			Msg("Relay dispatch failed, event lost")
		return
	}
	s.log.Info().
		Str("sender", ev.Sender).
		Str("kind", ev.Payload.Kind().String()).
		Msg("Relayed to secondary identity")
}

func (s *Supervisor) persistCredentials(ctx context.Context, creds []byte) {
	if err := s.creds.Upsert(ctx, SessionID, creds); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist session credentials")
		return
	}
	s.log.Debug().Int("bytes", len(creds)).Msg("Session credentials persisted")
}

// signalClose never blocks: the establishment loop only consumes the first
// signal per cycle and stale sessions may still emit afterwards.
func signalClose(ch chan<- closeSignal, sig closeSignal) {
	select {
	case ch <- sig:
	default:
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
