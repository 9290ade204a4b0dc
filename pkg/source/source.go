// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package source provides the live sequences ktail consumes: pod lifecycle
// events, cluster events and the log lines of individual pods.
//
// Every method blocks until its sequence ends, sending items on the provided
// channel. Implementations never close the channel; that is left to the
// caller, which usually runs the method in its own goroutine:
//
//	pods := make(chan event.PodEvent)
//	go func() {
//		defer close(pods)
//		errCh <- src.WatchPods(ctx, namespace, pods)
//	}()
//
// A nil error means the sequence ended normally or the context was
// cancelled. Abnormal termination is reported as a *FailureError.
package source

import (
	"context"
	"fmt"

	"sigs.k8s.io/ktail/pkg/event"
)

// Source is the cluster observation service.
type Source interface {
	// WatchPods sends a PodEvent for every pod in namespace, or in all
	// namespaces if namespace is empty, and then one for every change. A
	// watch closed by the server is resumed where it left off.
	WatchPods(ctx context.Context, namespace string, out chan<- event.PodEvent) error

	// WatchEvents sends every cluster Event in namespace, or in all
	// namespaces if namespace is empty, and then every Event created or
	// updated. A watch closed by the server is resumed where it left off.
	WatchEvents(ctx context.Context, namespace string, out chan<- event.ClusterEvent) error

	// PodLogs sends the log of one container of the named pod one line at
	// a time, following the log until the container terminates or ctx is
	// cancelled.
	PodLogs(ctx context.Context, namespace, name, container string, out chan<- string) error
}

// FailureError is returned when a watch or log stream terminates abnormally.
type FailureError struct {
	// Stream names the failed sequence, e.g. "pods", "events" or
	// "logs default/my-pod".
	Stream string
	Err    error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s stream failed: %v", e.Stream, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}
