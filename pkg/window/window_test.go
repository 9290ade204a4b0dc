// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"
)

// tickClock hands out tickers whose ticks are sent by the test. The tick
// channel is unbuffered, so a send returns only once Batch has taken the
// tick, which keeps line and tick ordering deterministic.
type tickClock struct {
	*testingclock.FakeClock
	ticks chan time.Time
}

func newTickClock() *tickClock {
	return &tickClock{
		FakeClock: testingclock.NewFakeClock(time.Now()),
		ticks:     make(chan time.Time),
	}
}

func (c *tickClock) NewTicker(time.Duration) clock.Ticker {
	return &tickClockTicker{c: c.ticks}
}

type tickClockTicker struct {
	c chan time.Time
}

func (t *tickClockTicker) C() <-chan time.Time { return t.c }
func (t *tickClockTicker) Stop()               {}

// step is one action of a test script: either a line arriving or a window
// closing.
type step struct {
	line string
	tick bool
}

func line(s string) step { return step{line: s} }
func tick() step          { return step{tick: true} }

func TestBatch(t *testing.T) {
	testCases := map[string]struct {
		script   []step
		expected [][]string
	}{
		"no lines": {
			script: []step{
				tick(),
				tick(),
				tick(),
			},
			expected: nil,
		},
		"lines in one window": {
			script: []step{
				line("a"),
				line("b"),
				line("c"),
				tick(),
			},
			expected: [][]string{
				{"a", "b", "c"},
			},
		},
		"empty windows are dropped": {
			script: []step{
				line("a"),
				line("b"),
				tick(),
				tick(),
				tick(),
				line("c"),
				line("d"),
				tick(),
			},
			expected: [][]string{
				{"a", "b"},
				{"c", "d"},
			},
		},
		"closing the input flushes the open window": {
			script: []step{
				line("a"),
				tick(),
				line("b"),
				line("c"),
			},
			expected: [][]string{
				{"a"},
				{"b", "c"},
			},
		},
		"one batch per window": {
			script: []step{
				line("a"),
				tick(),
				line("b"),
				tick(),
				line("c"),
				tick(),
			},
			expected: [][]string{
				{"a"},
				{"b"},
				{"c"},
			},
		},
		"blank lines are kept": {
			script: []step{
				line(""),
				line("a"),
				line(""),
			},
			expected: [][]string{
				{"", "a", ""},
			},
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			clk := newTickClock()
			lines := make(chan string)
			out := Batch(ctx, clk, DefaultSize, lines)

			var received [][]string
			done := make(chan struct{})
			go func() {
				defer close(done)
				for batch := range out {
					received = append(received, batch)
				}
			}()

			var input []string
			for _, s := range tc.script {
				if s.tick {
					clk.ticks <- clk.Now()
					continue
				}
				lines <- s.line
				input = append(input, s.line)
			}
			close(lines)
			<-done

			if diff := cmp.Diff(tc.expected, received); diff != "" {
				t.Errorf("unexpected batches (-want +got):\n%s", diff)
			}

			// Every line shows up exactly once, in order, and no batch
			// is empty.
			var flattened []string
			for _, batch := range received {
				assert.NotEmpty(t, batch)
				flattened = append(flattened, batch...)
			}
			assert.Equal(t, input, flattened)
		})
	}
}

func TestBatchOnePerWindowInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fakeClock := testingclock.NewFakeClock(time.Now())
	lines := make(chan string)
	out := Batch(ctx, fakeClock, time.Second, lines)
	require.True(t, fakeClock.HasWaiters(), "ticker should be created by Batch")

	// Lines at t=100ms, t=1100ms and t=2100ms each land in their own
	// window.
	for i, l := range []string{"first", "second", "third"} {
		fakeClock.Step(100 * time.Millisecond)
		lines <- l
		fakeClock.Step(900 * time.Millisecond)

		select {
		case batch := <-out:
			assert.Equal(t, []string{l}, batch, "window %d", i)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for window %d", i)
		}
	}

	close(lines)
	_, open := <-out
	assert.False(t, open, "expected no more batches")
}

func TestBatchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fakeClock := testingclock.NewFakeClock(time.Now())
	lines := make(chan string)
	out := Batch(ctx, fakeClock, time.Second, lines)

	lines <- "never flushed"
	cancel()

	select {
	case batch, open := <-out:
		assert.False(t, open, "expected closed channel, got %v", batch)
	case <-time.After(10 * time.Second):
		t.Fatal("Batch did not stop after cancel")
	}
}
