// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package clock abstracts wall time and one-shot timers.
//
// Every deadline, poll interval and retry backoff in widgetsync is armed
// through a Clock so that tests can advance time deterministically with Fake.
//
//	c := clock.NewFake(time.Unix(0, 0))
//	c.AfterFunc(time.Second, fire)
//	c.Advance(time.Second) // fire runs synchronously here
package clock
