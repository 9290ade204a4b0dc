// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"sync"

	"sigs.k8s.io/ktail/pkg/event"
)

// FakeSource is a cluster observation service driven by the test. Pod and
// cluster events are sent on the Pods and Events channels; closing a channel
// ends the corresponding watch with PodsErr or EventsErr. Log lines are
// sent with SendLog and log streams are ended with EndLogs.
type FakeSource struct {
	Pods      chan event.PodEvent
	PodsErr   error
	Events    chan event.ClusterEvent
	EventsErr error

	mu         sync.Mutex
	streams    map[string]chan *fakeLogStream
	containers map[string]string
	opened     chan string
	cancelled  chan string
}

type fakeLogStream struct {
	out chan<- string
	end chan error
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		Pods:       make(chan event.PodEvent),
		Events:     make(chan event.ClusterEvent),
		streams:    make(map[string]chan *fakeLogStream),
		containers: make(map[string]string),
		opened:     make(chan string, 100),
		cancelled:  make(chan string, 100),
	}
}

// SendLog delivers line on the open log stream of the given pod, waiting
// for the stream to be opened. It returns once the reader has taken the
// line.
func (f *FakeSource) SendLog(namespace, name, line string) {
	slot := f.slot(namespace + "/" + name)
	s := <-slot
	s.out <- line
	slot <- s
}

// EndLogs ends the open log stream of the given pod, waiting for the
// stream to be opened. PodLogs returns err.
func (f *FakeSource) EndLogs(namespace, name string, err error) {
	s := <-f.slot(namespace + "/" + name)
	s.end <- err
}

// Opened receives the namespace/name of every pod whose log stream is
// opened, in the order they are opened.
func (f *FakeSource) Opened() <-chan string {
	return f.opened
}

// Cancelled receives the namespace/name of every log stream that ended
// because its context was cancelled.
func (f *FakeSource) Cancelled() <-chan string {
	return f.cancelled
}

// Container returns the container named by the last log stream opened for
// the given pod.
func (f *FakeSource) Container(namespace, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[namespace+"/"+name]
}

// slot returns the channel holding the open stream of a pod, if any.
func (f *FakeSource) slot(key string) chan *fakeLogStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, found := f.streams[key]
	if !found {
		ch = make(chan *fakeLogStream, 1)
		f.streams[key] = ch
	}
	return ch
}

func (f *FakeSource) WatchPods(ctx context.Context, _ string, out chan<- event.PodEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-f.Pods:
			if !ok {
				return f.PodsErr
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (f *FakeSource) WatchEvents(ctx context.Context, _ string, out chan<- event.ClusterEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-f.Events:
			if !ok {
				return f.EventsErr
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (f *FakeSource) PodLogs(ctx context.Context, namespace, name, container string, out chan<- string) error {
	key := namespace + "/" + name
	f.mu.Lock()
	f.containers[key] = container
	f.mu.Unlock()
	slot := f.slot(key)
	s := &fakeLogStream{
		out: out,
		end: make(chan error, 1),
	}
	slot <- s
	f.opened <- key

	select {
	case err := <-s.end:
		return err
	case <-ctx.Done():
		// Take the stream out of its slot so it is not reused.
		select {
		case <-slot:
		default:
		}
		f.cancelled <- key
		return nil
	}
}
