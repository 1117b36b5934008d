// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"sync"
)

var (
	instanceOnce sync.Once
	instance     *Widget
	instanceErr  error
)

// Init creates the process-wide widget on its first call. Later calls
// ignore opts and return the same widget and error.
func Init(ctx context.Context, opts Options) (*Widget, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = New(ctx, opts)
	})
	return instance, instanceErr
}

// Current returns the process-wide widget, or nil before Init.
func Current() *Widget {
	return instance
}

// resetInstanceForTesting forgets the process-wide widget.
func resetInstanceForTesting() {
	instanceOnce = sync.Once{}
	instance = nil
	instanceErr = nil
}
