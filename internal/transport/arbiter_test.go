// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/widgetsync/internal/clock"
)

type harness struct {
	arb      *Arbiter
	clock    *clock.Fake
	connects int
	polls    int
	// autoDone completes polls immediately.
	autoDone bool
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{clock: clock.NewFake(time.Unix(0, 0)), autoDone: true}
	h.arb = New(cfg, h.clock, nil, Hooks{
		Connect: func() { h.connects++ },
		Poll: func() {
			h.polls++
			if h.autoDone {
				h.arb.PollDone()
			}
		},
	}, nil)
	return h
}

func TestArbiter_PollsWhileConnecting(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.arb.Start()

	assert.Equal(t, StateSocketConnecting, h.arb.State())
	assert.Equal(t, 1, h.connects)
	assert.Equal(t, DefaultIdleInterval, h.arb.PollInterval())

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, 2, h.polls)
}

func TestArbiter_IdleShutdownWhenSocketActive(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.arb.Start()
	h.arb.SocketConnected()

	assert.Equal(t, StateSocketActive, h.arb.State())
	assert.False(t, h.arb.PollTimerArmed(), "no poll timer with empty queue and live socket")
	h.clock.Advance(time.Minute)
	assert.Equal(t, 0, h.polls)
}

func TestArbiter_SafetyNetPollingWhilePending(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.arb.Start()
	h.arb.SocketConnected()

	h.arb.SetPending(true)
	require.True(t, h.arb.PollTimerArmed())
	assert.Equal(t, DefaultActiveInterval, h.arb.PollInterval())
	h.clock.Advance(3 * time.Second)
	assert.Equal(t, 3, h.polls)

	h.arb.SetPending(false)
	assert.False(t, h.arb.PollTimerArmed())
}

func TestArbiter_FailoverAndSingleRetry(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.arb.Start()
	h.arb.SocketConnected()

	h.arb.SocketFailed("disconnect")
	assert.Equal(t, StateSocketFailed, h.arb.State())
	assert.True(t, h.arb.PollTimerArmed(), "polling takes over immediately")
	assert.True(t, h.arb.RetryArmed())

	h.arb.SocketFailed("connect_error")
	h.clock.Advance(DefaultRetryDelay)
	assert.Equal(t, 2, h.connects, "repeated failures keep a single retry timer")
	assert.Equal(t, StateSocketConnecting, h.arb.State())

	h.arb.SocketConnected()
	assert.False(t, h.arb.RetryArmed())
	assert.False(t, h.arb.PollTimerArmed())
}

func TestArbiter_CadenceSwitchesWithPending(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SocketEnabled = false
	h := newHarness(t, cfg)
	h.arb.Start()

	assert.Equal(t, StatePollingOnly, h.arb.State())
	assert.Equal(t, 0, h.connects)
	assert.Equal(t, DefaultIdleInterval, h.arb.PollInterval())

	h.arb.SetPending(true)
	assert.Equal(t, DefaultActiveInterval, h.arb.PollInterval())

	h.arb.SocketConnected()
	assert.Equal(t, StatePollingOnly, h.arb.State(), "disabled socket never becomes active")
}

func TestArbiter_TicksNeverOverlap(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.autoDone = false
	h.arb.Start()

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, 1, h.polls, "next tick waits for PollDone")
	assert.True(t, h.arb.Polling())

	h.arb.PollDone()
	h.clock.Advance(DefaultIdleInterval)
	assert.Equal(t, 2, h.polls)
}

func TestArbiter_HideStopsPollingOnly(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.arb.Start()
	h.arb.SocketFailed("connect_error")

	h.arb.Hide()
	assert.False(t, h.arb.PollTimerArmed())
	assert.True(t, h.arb.RetryArmed(), "hiding keeps the push upgrade path")

	h.arb.Show()
	assert.True(t, h.arb.PollTimerArmed())
}

func TestArbiter_ShutdownClearsTimers(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.arb.Start()
	h.arb.SocketFailed("disconnect")
	h.arb.Shutdown()

	assert.Equal(t, 0, h.clock.Pending())
	h.clock.Advance(time.Minute)
	assert.Equal(t, 0, h.polls)
	assert.Equal(t, 1, h.connects)
}
