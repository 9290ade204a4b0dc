// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package tail

import (
	"context"
	"sync"

	"sigs.k8s.io/ktail/pkg/event"
)

// Merge forwards the events of every channel onto a single channel, which
// is closed once all of them are closed. Events from one channel keep their
// order. Once ctx is cancelled, remaining events are drained and dropped.
func Merge(ctx context.Context, channels ...<-chan event.Event) <-chan event.Event {
	out := make(chan event.Event)

	var wg sync.WaitGroup
	wg.Add(len(channels))
	for _, ch := range channels {
		go func(ch <-chan event.Event) {
			defer wg.Done()
			for e := range ch {
				if ctx.Err() != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
				}
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
