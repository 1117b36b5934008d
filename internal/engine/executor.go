// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"sync"

	"go.uber.org/zap"
)

// Executor runs posted closures one at a time, in posting order.
type Executor interface {
	// Post schedules f. It returns false once the executor is closed.
	Post(f func()) bool
}

// =============================================================================
// LOOP
// =============================================================================

// Loop is an Executor backed by a single goroutine.
type Loop struct {
	logger *zap.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// StartLoop starts the loop goroutine.
func StartLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Post implements Executor. It never blocks.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting work, runs what is already queued, and waits for
// the goroutine to exit. It must not be called from the loop itself.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, f := range batch {
			l.safeRun(f)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

func (l *Loop) safeRun(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("engine task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	f()
}

// =============================================================================
// INLINE
// =============================================================================

// Inline runs closures on the posting goroutine. A closure posted while
// another is running is queued and runs when the current one returns, so
// each closure still runs to completion before the next begins.
type Inline struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	closed  bool
}

// NewInline returns an inline executor.
func NewInline() *Inline { return &Inline{} }

// Post implements Executor.
func (x *Inline) Post(f func()) bool {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return false
	}
	x.queue = append(x.queue, f)
	if x.running {
		x.mu.Unlock()
		return true
	}
	x.running = true
	for len(x.queue) > 0 {
		next := x.queue[0]
		x.queue = x.queue[1:]
		x.mu.Unlock()
		next()
		x.mu.Lock()
	}
	x.running = false
	x.mu.Unlock()
	return true
}

// Close makes further Posts fail.
func (x *Inline) Close() {
	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()
}
