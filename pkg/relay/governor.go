// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DenyReason explains why the governor rejected an event. Denials are
// expected control-flow outcomes, not errors; denied events are dropped
// and never retried.
type DenyReason string

const (
	// DenyHourlyPause applies while the hourly ceiling pause is active.
	DenyHourlyPause DenyReason = "hourly-limit"
	// DenyMinuteLimit applies when the per-minute ceiling is exceeded.
	DenyMinuteLimit DenyReason = "minute-limit"
	// DenyHourLimit applies the moment the per-hour ceiling is exceeded.
	DenyHourLimit DenyReason = "hour-limit"
	// DenyDuplicate applies to identical text repeated within the window.
	DenyDuplicate DenyReason = "duplicate"
)

// Verdict is the outcome of Governor.Admit. When OK, the caller must
// observe Wait before dispatching the event.
type Verdict struct {
	OK     bool
	Reason DenyReason
	Wait   time.Duration
}

// Governor enforces the outbound rate ceilings, suppresses duplicate text
// within a time window and injects randomized pacing before each dispatch.
// The clock and the pacing source are injected so window behavior is
// testable without real timers.
type Governor struct {
	minuteCap int
	hourCap   int
	dupWindow time.Duration

	now  func() time.Time
	pace func() time.Duration
	log  zerolog.Logger

	mu          sync.Mutex
	minuteCount int
	hourCount   int
	paused      bool
	lastText    string
	lastRelayAt time.Time
}

// NewGovernor builds a Governor from the config, using the wall clock and
// a uniform pacing draw from [MinDelay, MaxDelay].
func NewGovernor(cfg *Config, log zerolog.Logger) *Governor {
	minDelay, maxDelay := cfg.MinDelay(), cfg.MaxDelay()
	return &Governor{
		minuteCap: cfg.MinuteCap,
		hourCap:   cfg.HourCap,
		dupWindow: cfg.DupWindow(),
		now:       time.Now,
		pace: func() time.Duration {
			return minDelay + rand.N(maxDelay-minDelay+1)
		},
		log: log.With().Str("component", "governor").Logger(),
	}
}

// Admit decides whether ev may be relayed. Counters are incremented even
// on paths that deny, so exceeding attempts still consume quota and the
// window does not reopen early.
func (g *Governor) Admit(ev *InboundEvent) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		return Verdict{Reason: DenyHourlyPause}
	}

	g.minuteCount++
	g.hourCount++
	if g.minuteCount > g.minuteCap {
		return Verdict{Reason: DenyMinuteLimit}
	}
	if g.hourCount > g.hourCap {
		g.paused = true
		return Verdict{Reason: DenyHourLimit}
	}

	// Duplicate suppression only inspects text content; media bodies are
	// never compared.
	if text := ev.Text(); text != "" {
		now := g.now()
		if text == g.lastText && now.Sub(g.lastRelayAt) < g.dupWindow {
			return Verdict{Reason: DenyDuplicate}
		}
		g.lastText = text
		g.lastRelayAt = now
	}

	return Verdict{OK: true, Wait: g.pace()}
}

// RollMinute resets the per-minute counter at a minute window boundary.
func (g *Governor) RollMinute() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.minuteCount = 0
}

// RollHour resets the per-hour counter and clears the pause flag,
// unconditionally, even mid denial streak.
func (g *Governor) RollHour() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hourCount = 0
	if g.paused {
		g.log.Info().Msg("Hourly pause cleared at window rollover")
	}
	g.paused = false
}

// Run drives the window rollovers until ctx is cancelled.
func (g *Governor) Run(ctx context.Context) {
	minute := time.NewTicker(time.Minute)
	defer minute.Stop()
	hour := time.NewTicker(time.Hour)
	defer hour.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-minute.C:
			g.RollMinute()
		case <-hour.C:
			g.RollHour()
		}
	}
}
