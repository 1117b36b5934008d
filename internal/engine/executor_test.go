// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := StartLoop(nil)
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	l.Close()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.False(t, l.Post(func() {}))
}

func TestLoop_ConcurrentPosters(t *testing.T) {
	l := StartLoop(nil)
	count := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()
	l.Close()
	assert.Equal(t, 400, count)
}

func TestLoop_SurvivesPanic(t *testing.T) {
	l := StartLoop(nil)
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.Close()
	assert.True(t, ran)
}

func TestInline_NestedPostRunsAfterCurrent(t *testing.T) {
	x := NewInline()
	var trace []string
	x.Post(func() {
		trace = append(trace, "outer start")
		x.Post(func() { trace = append(trace, "inner") })
		trace = append(trace, "outer end")
	})
	assert.Equal(t, []string{"outer start", "outer end", "inner"}, trace)

	x.Close()
	assert.False(t, x.Post(func() {}))
}
