// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package tail

import (
	"context"

	"k8s.io/klog/v2"
	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/match"
	"sigs.k8s.io/ktail/pkg/metrics"
	"sigs.k8s.io/ktail/pkg/source"
)

// EventWatcher reports the cluster events accepted by Matcher.
type EventWatcher struct {
	Source source.Source

	// Namespace restricts the watch to one namespace. Empty watches every
	// namespace.
	Namespace string
	Matcher   match.EventMatcher

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Watch returns a channel with a ClusterEvent event for every matching
// cluster event, in the order they are observed. If the watch fails an
// ErrorType event is sent before the channel is closed.
func (w *EventWatcher) Watch(ctx context.Context) <-chan event.Event {
	eventChannel := make(chan event.Event)

	go func() {
		defer close(eventChannel)

		events := make(chan event.ClusterEvent)
		watchErr := make(chan error, 1)
		go func() {
			defer close(events)
			watchErr <- w.Source.WatchEvents(ctx, w.Namespace, events)
		}()

		for e := range events {
			if !w.Matcher.Match(e) {
				klog.V(5).Infof("skipping event about %s %s/%s", e.InvolvedObjectKind,
					e.InvolvedObjectNamespace, e.InvolvedObjectName)
				continue
			}
			w.Metrics.EventReported(e.Type)
			clusterEvent := e
			select {
			case eventChannel <- event.Event{Type: event.ClusterEventType, ClusterEvent: &clusterEvent}:
			case <-ctx.Done():
			}
		}

		if err := <-watchErr; err != nil {
			klog.V(2).Infof("event pipeline failed: %v", err)
			select {
			case eventChannel <- event.Event{Type: event.ErrorType, Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return eventChannel
}
