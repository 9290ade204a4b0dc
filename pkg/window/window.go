// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package window groups a live sequence of log lines into consecutive,
// non-overlapping time windows.
package window

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// DefaultSize is the window size used when none is configured.
const DefaultSize = time.Second

// Batch reads lines and sends, once per window of the given size, the
// lines received during that window in arrival order. Windows with no
// lines are dropped. The first window starts when Batch is called, not when
// the first line arrives.
//
// When lines is closed the current window is closed early, sent if it is
// not empty, and the returned channel is closed. Cancelling ctx closes the
// returned channel without sending the current window.
func Batch(ctx context.Context, clk clock.WithTicker, size time.Duration, lines <-chan string) <-chan []string {
	out := make(chan []string)
	// The ticker is created before returning so the first window is
	// anchored to this call.
	ticker := clk.NewTicker(size)

	go func() {
		defer close(out)
		defer ticker.Stop()

		var pending []string
		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			batch := pending
			pending = nil
			select {
			case out <- batch:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					flush()
					return
				}
				pending = append(pending, line)
			case <-ticker.C():
				if !flush() {
					return
				}
			}
		}
	}()
	return out
}
