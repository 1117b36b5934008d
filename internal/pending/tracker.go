// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pending

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/clock"
	"github.com/jeranaias/widgetsync/internal/model"
)

// DefaultTimeout is how long a sent message waits for a reply.
const DefaultTimeout = 90 * time.Second

// =============================================================================
// ENTRY STATE
// =============================================================================

// State is the lifecycle state of an Entry.
type State int

const (
	// StateCreated covers the window until the send call returns.
	StateCreated State = iota
	// StateAwaitingResponse means the send call returned and a reply is due.
	StateAwaitingResponse
	StateResolved
	StateFailed
	StateTimedOut
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateFailed || s == StateTimedOut
}

// Entry is one outstanding user-to-assistant round trip.
type Entry struct {
	ID string
	// Message is the optimistic message this entry was created for. The
	// tracker does not own it.
	Message *model.Message
	// ServerMessageID is set once the send response or a status event
	// reports it. It may stay empty.
	ServerMessageID string
	TaskID          string
	CreatedAt       time.Time
	Deadline        time.Time

	state  State
	queued bool
	timer  clock.Timer
}

// State returns the entry's current state.
func (e *Entry) State() State { return e.state }

// Queued reports whether the entry is still awaited.
func (e *Entry) Queued() bool { return e.queued }

// =============================================================================
// TRACKER
// =============================================================================

// Tracker is the FIFO of outstanding entries.
type Tracker struct {
	clock    clock.Clock
	timeout  time.Duration
	onExpire func(*Entry)
	logger   *zap.Logger
	queue    []*Entry
}

// New creates a Tracker. onExpire is invoked from the clock when an entry's
// deadline passes; it should arrange for Expire to be called.
func New(c clock.Clock, timeout time.Duration, onExpire func(*Entry), logger *zap.Logger) *Tracker {
	if c == nil {
		c = clock.Real()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{clock: c, timeout: timeout, onExpire: onExpire, logger: logger}
}

// Timeout returns the configured deadline.
func (t *Tracker) Timeout() time.Duration { return t.timeout }

// Create enqueues an entry for msg and arms its deadline timer.
func (t *Tracker) Create(msg *model.Message) *Entry {
	now := t.clock.Now()
	e := &Entry{
		ID:        uuid.NewString(),
		Message:   msg,
		CreatedAt: now,
		Deadline:  now.Add(t.timeout),
		state:     StateCreated,
		queued:    true,
	}
	if t.onExpire != nil {
		e.timer = t.clock.AfterFunc(t.timeout, func() { t.onExpire(e) })
	}
	t.queue = append(t.queue, e)
	t.logger.Debug("pending entry created", zap.String("entry", e.ID), zap.Int("queued", len(t.queue)))
	return e
}

// SendReturned records that the send call returned, attaching ids when the
// response carried them. No-op once the entry is terminal.
func (t *Tracker) SendReturned(e *Entry, messageID, taskID string) bool {
	if e == nil || e.state.Terminal() {
		return false
	}
	if e.state == StateCreated {
		e.state = StateAwaitingResponse
	}
	if taskID != "" {
		e.TaskID = taskID
	}
	t.AttachServerID(e, messageID)
	return true
}

// AttachServerID sets the server message id. It is a no-op when the entry
// is terminal, id is empty, or an id is already attached.
func (t *Tracker) AttachServerID(e *Entry, id string) bool {
	if e == nil || id == "" || e.state.Terminal() || e.ServerMessageID != "" {
		return false
	}
	e.ServerMessageID = id
	return true
}

// AttachFromStatus gives id to the oldest queued entry that has none yet.
// It returns that entry, or nil when id is already known or no entry
// needs one.
func (t *Tracker) AttachFromStatus(id string) *Entry {
	if id == "" {
		return nil
	}
	if e := t.FindByServerID(id); e != nil {
		return e
	}
	for _, e := range t.queue {
		if e.ServerMessageID == "" {
			t.AttachServerID(e, id)
			return e
		}
	}
	return nil
}

// FindByServerID returns the queued entry carrying id, or nil.
func (t *Tracker) FindByServerID(id string) *Entry {
	if id == "" {
		return nil
	}
	for _, e := range t.queue {
		if e.ServerMessageID == id {
			return e
		}
	}
	return nil
}

// FindByMessage returns the queued entry created for msg, or nil.
func (t *Tracker) FindByMessage(msg *model.Message) *Entry {
	for _, e := range t.queue {
		if e.Message == msg {
			return e
		}
	}
	return nil
}

// Resolve removes e after a matching reply arrived.
func (t *Tracker) Resolve(e *Entry) bool { return t.finish(e, StateResolved) }

// Fail removes e after an explicit failure.
func (t *Tracker) Fail(e *Entry) bool { return t.finish(e, StateFailed) }

// Expire removes e when its deadline has passed. It returns false when the
// entry was already removed, so the caller surfaces at most one timeout.
func (t *Tracker) Expire(e *Entry) bool { return t.finish(e, StateTimedOut) }

func (t *Tracker) finish(e *Entry, state State) bool {
	if e == nil || !e.queued {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.queued = false
	e.state = state
	for i, cur := range t.queue {
		if cur == e {
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			break
		}
	}
	t.logger.Debug("pending entry finished",
		zap.String("entry", e.ID),
		zap.Stringer("state", state),
		zap.Int("queued", len(t.queue)))
	return true
}

// Head returns the oldest queued entry, or nil.
func (t *Tracker) Head() *Entry {
	if len(t.queue) == 0 {
		return nil
	}
	return t.queue[0]
}

// Overdue returns the head entry if its deadline has passed at now.
func (t *Tracker) Overdue(now time.Time) *Entry {
	head := t.Head()
	if head == nil || now.Before(head.Deadline) {
		return nil
	}
	return head
}

// Len returns the number of queued entries.
func (t *Tracker) Len() int { return len(t.queue) }

// Clear stops every deadline timer and drops all entries as failed.
func (t *Tracker) Clear() {
	for len(t.queue) > 0 {
		t.finish(t.queue[0], StateFailed)
	}
}
