// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package tail composes the pod filter, the per-pod log streams and the
// windowing stage into a single pipeline that reports LogBatch events, and
// provides the independent cluster event pipeline.
package tail

import (
	"context"
	"sync"
	"time"

	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/match"
	"sigs.k8s.io/ktail/pkg/metrics"
	"sigs.k8s.io/ktail/pkg/source"
	"sigs.k8s.io/ktail/pkg/window"
)

// LogTailer follows the logs of every running pod accepted by Matcher.
type LogTailer struct {
	Source  source.Source
	Matcher match.PodMatcher

	// WindowSize is the length of the windows log lines are batched
	// into. Defaults to window.DefaultSize.
	WindowSize time.Duration

	// Clock drives the windows. Defaults to the real clock.
	Clock clock.WithTicker

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Tail starts watching pods and returns a channel with a LogBatch event for
// every non-empty window of every tailed pod. Batches of one pod arrive in
// window order; batches of different pods are interleaved arbitrarily.
//
// If any underlying stream fails, a single ErrorType event is sent and the
// pipeline shuts down. The channel is closed once every stream has ended,
// which happens when ctx is cancelled or after a failure.
func (t *LogTailer) Tail(ctx context.Context) <-chan event.Event {
	eventChannel := make(chan event.Event)

	go func() {
		defer close(eventChannel)

		runnerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		r := &logTailerRunner{
			parentCtx:     ctx,
			ctx:           runnerCtx,
			cancel:        cancel,
			source:        t.Source,
			matcher:       t.Matcher,
			windowSize:    t.WindowSize,
			clock:         t.Clock,
			metrics:       t.Metrics,
			subscriptions: make(map[string]context.CancelFunc),
			eventChannel:  eventChannel,
		}
		if r.windowSize <= 0 {
			r.windowSize = window.DefaultSize
		}
		if r.clock == nil {
			r.clock = clock.RealClock{}
		}
		r.run()
	}()

	return eventChannel
}

// logTailerRunner holds the state of a single call to Tail. The
// subscriptions map is only touched by the goroutine running run, so it
// needs no locking.
type logTailerRunner struct {
	// parentCtx is the context passed to Tail. The error event is sent
	// while it is alive, even after ctx has been cancelled.
	parentCtx context.Context

	// ctx is cancelled when the caller cancels parentCtx or when any
	// stream fails. Every log stream and window derives from it.
	ctx    context.Context
	cancel context.CancelFunc

	source     source.Source
	matcher    match.PodMatcher
	windowSize time.Duration
	clock      clock.WithTicker
	metrics    *metrics.Metrics

	// subscriptions maps the namespace/name of every tailed pod to the
	// function that cancels its log stream.
	subscriptions map[string]context.CancelFunc

	// wg tracks the goroutines of every log stream and window.
	wg sync.WaitGroup

	// mu serializes sends on eventChannel so nothing is sent after the
	// error event.
	mu           sync.Mutex
	failed       bool
	eventChannel chan event.Event
}

func (r *logTailerRunner) run() {
	pods := make(chan event.PodEvent)
	watchErr := make(chan error, 1)
	go func() {
		defer close(pods)
		watchErr <- r.source.WatchPods(r.ctx, r.matcher.Namespace, pods)
	}()

	for e := range pods {
		r.handle(e)
	}
	if err := <-watchErr; err != nil {
		r.fail(err)
	}

	// The pod watch ending normally does not end the log streams already
	// open; they run until their pods stop logging.
	r.wg.Wait()
}

// handle opens a log stream for a newly matched pod and closes the stream
// of a tailed pod that was deleted or is no longer running.
func (r *logTailerRunner) handle(e event.PodEvent) {
	key := e.Key()
	if cancel, found := r.subscriptions[key]; found {
		if e.Type == watch.Deleted || e.Phase != string(v1.PodRunning) {
			klog.V(2).Infof("stop tailing pod %s (%s, phase %s)", key, e.Type, e.Phase)
			cancel()
			delete(r.subscriptions, key)
		}
		return
	}
	if e.Type == watch.Deleted {
		return
	}
	if r.matcher.Match(e) {
		r.open(e)
	}
}

func (r *logTailerRunner) open(e event.PodEvent) {
	key := e.Key()
	klog.V(2).Infof("start tailing pod %s", key)

	subCtx, cancel := context.WithCancel(r.ctx)
	r.subscriptions[key] = cancel

	lines := make(chan string)
	// The window runs on the runner context so that stopping one pod
	// still flushes the lines it already logged.
	batches := window.Batch(r.ctx, r.clock, r.windowSize, lines)
	r.metrics.StreamOpened()

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		defer close(lines)
		defer r.metrics.StreamClosed()
		if err := r.source.PodLogs(subCtx, e.Namespace, e.Name, e.Container, lines); err != nil {
			r.fail(err)
		}
	}()
	go func() {
		defer r.wg.Done()
		for batch := range batches {
			r.metrics.BatchEmitted(len(batch))
			ok := r.send(event.Event{
				Type: event.LogBatchType,
				LogBatch: &event.LogBatch{
					PodNamespace: e.Namespace,
					PodName:      e.Name,
					Lines:        batch,
				},
			})
			if !ok {
				return
			}
		}
	}()
}

func (r *logTailerRunner) send(e event.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return false
	}
	select {
	case r.eventChannel <- e:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// fail reports err and shuts the pipeline down. Only the first failure is
// reported.
func (r *logTailerRunner) fail(err error) {
	// Cancelling first unblocks any send holding the lock.
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return
	}
	r.failed = true
	klog.V(2).Infof("log pipeline failed: %v", err)
	select {
	case r.eventChannel <- event.Event{Type: event.ErrorType, Error: err}:
	case <-r.parentCtx.Done():
	}
}
