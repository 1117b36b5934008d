// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/clock"
)

// Default cadences.
const (
	DefaultIdleInterval   = 2500 * time.Millisecond
	DefaultActiveInterval = 1000 * time.Millisecond
	DefaultRetryDelay     = 30 * time.Second
)

// =============================================================================
// STATES
// =============================================================================

// State is the push channel state as seen by the arbiter.
type State int

const (
	StateSocketPreferred State = iota
	StateSocketConnecting
	StateSocketActive
	StateSocketFailed
	StatePollingOnly
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSocketPreferred:
		return "socket_preferred"
	case StateSocketConnecting:
		return "socket_connecting"
	case StateSocketActive:
		return "socket_active"
	case StateSocketFailed:
		return "socket_failed"
	case StatePollingOnly:
		return "polling_only"
	default:
		return "unknown"
	}
}

// =============================================================================
// ARBITER
// =============================================================================

// Hooks are the actions the arbiter triggers. Both are called on the
// owner's loop and must not block.
type Hooks struct {
	// Connect starts a push channel connection attempt. The outcome is
	// reported back through SocketConnected or SocketFailed.
	Connect func()
	// Poll starts one history fetch. The owner calls PollDone when it
	// completes, successfully or not.
	Poll func()
}

// Config holds the arbiter's timings.
type Config struct {
	SocketEnabled  bool
	IdleInterval   time.Duration
	ActiveInterval time.Duration
	RetryDelay     time.Duration
}

// DefaultConfig returns the default timings with the push channel enabled.
func DefaultConfig() Config {
	return Config{
		SocketEnabled:  true,
		IdleInterval:   DefaultIdleInterval,
		ActiveInterval: DefaultActiveInterval,
		RetryDelay:     DefaultRetryDelay,
	}
}

// Arbiter owns the poll timer and the push retry timer.
type Arbiter struct {
	cfg    Config
	clock  clock.Clock
	post   func(func())
	hooks  Hooks
	logger *zap.Logger

	state    State
	pending  bool
	visible  bool
	stopped  bool
	inFlight bool

	pollTimer    clock.Timer
	pollInterval time.Duration
	retryTimer   clock.Timer
}

// New creates an Arbiter. post must run its argument on the owner's loop.
func New(cfg Config, c clock.Clock, post func(func()), hooks Hooks, logger *zap.Logger) *Arbiter {
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = DefaultActiveInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if c == nil {
		c = clock.Real()
	}
	if post == nil {
		post = func(f func()) { f() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arbiter{
		cfg:     cfg,
		clock:   c,
		post:    post,
		hooks:   hooks,
		logger:  logger,
		state:   StateSocketPreferred,
		visible: true,
	}
}

// State returns the current state.
func (a *Arbiter) State() State { return a.state }

// SocketActive reports whether the push channel is connected.
func (a *Arbiter) SocketActive() bool { return a.state == StateSocketActive }

// Polling reports whether a poll timer is armed or a poll is in flight.
func (a *Arbiter) Polling() bool { return a.pollTimer != nil || a.inFlight }

// PollTimerArmed reports whether a poll timer is scheduled.
func (a *Arbiter) PollTimerArmed() bool { return a.pollTimer != nil }

// PollInterval returns the interval of the armed poll timer, or zero.
func (a *Arbiter) PollInterval() time.Duration {
	if a.pollTimer == nil {
		return 0
	}
	return a.pollInterval
}

// RetryArmed reports whether a push reconnect is scheduled.
func (a *Arbiter) RetryArmed() bool { return a.retryTimer != nil }

// Start begins delivery: a push connection attempt when enabled, with
// polling covering the gap until it succeeds.
func (a *Arbiter) Start() {
	a.stopped = false
	if a.cfg.SocketEnabled {
		a.transition(StateSocketConnecting)
		a.connect()
	} else {
		a.transition(StatePollingOnly)
	}
	a.reevaluate()
}

// SocketConnected records a successful push connection.
func (a *Arbiter) SocketConnected() {
	if a.stopped || a.state == StatePollingOnly {
		return
	}
	a.stopRetry()
	a.transition(StateSocketActive)
	a.reevaluate()
}

// SocketFailed records a push disconnect or connect error. Polling takes
// over immediately and a single reconnect is scheduled.
func (a *Arbiter) SocketFailed(reason string) {
	if a.stopped || a.state == StatePollingOnly {
		return
	}
	a.logger.Warn("push channel unavailable, polling", zap.String("reason", reason))
	a.transition(StateSocketFailed)
	a.scheduleRetry()
	a.reevaluate()
}

// SetPending tells the arbiter whether any reply is outstanding.
func (a *Arbiter) SetPending(pending bool) {
	a.pending = pending
	a.reevaluate()
}

// PollDone marks the in-flight poll as finished and schedules the next.
func (a *Arbiter) PollDone() {
	a.inFlight = false
	a.reevaluate()
}

// Hide stops polling while the chat is not shown. The push channel and
// in-flight requests are left alone.
func (a *Arbiter) Hide() {
	a.visible = false
	a.stopPoll()
}

// Show resumes polling if it is needed.
func (a *Arbiter) Show() {
	a.visible = true
	a.reevaluate()
}

// SetIdleInterval changes the idle cadence, rearming the timer if needed.
func (a *Arbiter) SetIdleInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	a.cfg.IdleInterval = d
	a.reevaluate()
}

// Shutdown clears every timer. The arbiter stays inert until Start.
func (a *Arbiter) Shutdown() {
	a.stopped = true
	a.stopPoll()
	a.stopRetry()
}

// =============================================================================
// INTERNALS
// =============================================================================

func (a *Arbiter) transition(to State) {
	if a.state == to {
		return
	}
	a.logger.Debug("transport state", zap.Stringer("from", a.state), zap.Stringer("to", to))
	a.state = to
}

func (a *Arbiter) connect() {
	if a.hooks.Connect != nil {
		a.hooks.Connect()
	}
}

// shouldPoll is false only when hidden, stopped, or when the push channel
// is active with nothing pending.
func (a *Arbiter) shouldPoll() bool {
	if a.stopped || !a.visible {
		return false
	}
	return !(a.state == StateSocketActive && !a.pending)
}

func (a *Arbiter) interval() time.Duration {
	if a.pending {
		return a.cfg.ActiveInterval
	}
	return a.cfg.IdleInterval
}

// reevaluate brings the poll timer in line with the current state.
func (a *Arbiter) reevaluate() {
	if !a.shouldPoll() {
		a.stopPoll()
		return
	}
	if a.inFlight {
		return
	}
	want := a.interval()
	if a.pollTimer != nil {
		if a.pollInterval == want {
			return
		}
		a.pollTimer.Stop()
		a.pollTimer = nil
	}
	a.armPoll(want)
}

func (a *Arbiter) armPoll(d time.Duration) {
	var timer clock.Timer
	timer = a.clock.AfterFunc(d, func() {
		a.post(func() { a.pollTick(timer) })
	})
	a.pollTimer = timer
	a.pollInterval = d
}

func (a *Arbiter) pollTick(fired clock.Timer) {
	// A stale callback from a timer that was replaced or stopped.
	if a.pollTimer != fired {
		return
	}
	a.pollTimer = nil
	if !a.shouldPoll() {
		return
	}
	a.inFlight = true
	if a.hooks.Poll != nil {
		a.hooks.Poll()
	} else {
		a.inFlight = false
		a.reevaluate()
	}
}

func (a *Arbiter) stopPoll() {
	if a.pollTimer != nil {
		a.pollTimer.Stop()
		a.pollTimer = nil
	}
}

func (a *Arbiter) scheduleRetry() {
	if a.retryTimer != nil {
		return
	}
	var timer clock.Timer
	timer = a.clock.AfterFunc(a.cfg.RetryDelay, func() {
		a.post(func() { a.retryFired(timer) })
	})
	a.retryTimer = timer
}

func (a *Arbiter) retryFired(fired clock.Timer) {
	if a.retryTimer != fired {
		return
	}
	a.retryTimer = nil
	if a.stopped || a.state != StateSocketFailed {
		return
	}
	a.transition(StateSocketConnecting)
	a.connect()
}

func (a *Arbiter) stopRetry() {
	if a.retryTimer != nil {
		a.retryTimer.Stop()
		a.retryTimer = nil
	}
}
