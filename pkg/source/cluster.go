// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
	"k8s.io/klog/v2"
	"k8s.io/kubectl/pkg/cmd/util/podcmd"
	"sigs.k8s.io/ktail/pkg/event"
)

// MaxLineSize is the longest log line PodLogs will read. Longer lines fail
// the log stream.
const MaxLineSize = 1024 * 1024

// DefaultMinRestartDelay is the shortest time between two watch requests
// for the same resource.
const DefaultMinRestartDelay = time.Second

var errWatchClosed = errors.New("watch closed by the server")

// ClusterSource implements Source on top of a typed Kubernetes client.
type ClusterSource struct {
	Client kubernetes.Interface

	// LogOptions is used for every log request. Follow and Container are
	// always set.
	LogOptions v1.PodLogOptions

	// MinRestartDelay is the shortest time between two watch requests for
	// the same resource, so a server that keeps closing watches right away
	// is not hammered.
	MinRestartDelay time.Duration
}

var _ Source = &ClusterSource{}

// NewClusterSource returns a ClusterSource that follows the logs of the
// default container of each pod.
func NewClusterSource(client kubernetes.Interface) *ClusterSource {
	return &ClusterSource{
		Client:          client,
		MinRestartDelay: DefaultMinRestartDelay,
	}
}

type handleFunc func(obj runtime.Object, t watch.EventType) (bool, error)

func (s *ClusterSource) WatchPods(ctx context.Context, namespace string, out chan<- event.PodEvent) error {
	pods := s.Client.CoreV1().Pods(namespace)
	lw := &cache.ListWatch{
		ListFunc: func(opts metav1.ListOptions) (runtime.Object, error) {
			return pods.List(ctx, opts)
		},
		WatchFunc: func(opts metav1.ListOptions) (watch.Interface, error) {
			return pods.Watch(ctx, opts)
		},
	}
	return s.listWatch(ctx, "pods", lw, func(obj runtime.Object, t watch.EventType) (bool, error) {
		pod, ok := obj.(*v1.Pod)
		if !ok {
			return false, fmt.Errorf("unexpected object type %T", obj)
		}
		e := event.PodEvent{
			Type:      t,
			Namespace: pod.Namespace,
			Name:      pod.Name,
			Phase:     string(pod.Status.Phase),
		}
		container, err := podcmd.FindOrDefaultContainerByName(pod, "", true, nil)
		if err != nil {
			klog.V(3).Infof("No log container for pod %s/%s: %v", pod.Namespace, pod.Name, err)
		} else {
			e.Container = container.Name
		}
		select {
		case out <- e:
			return true, nil
		case <-ctx.Done():
			return false, nil
		}
	})
}

func (s *ClusterSource) WatchEvents(ctx context.Context, namespace string, out chan<- event.ClusterEvent) error {
	events := s.Client.CoreV1().Events(namespace)
	lw := &cache.ListWatch{
		ListFunc: func(opts metav1.ListOptions) (runtime.Object, error) {
			return events.List(ctx, opts)
		},
		WatchFunc: func(opts metav1.ListOptions) (watch.Interface, error) {
			return events.Watch(ctx, opts)
		},
	}
	return s.listWatch(ctx, "events", lw, func(obj runtime.Object, t watch.EventType) (bool, error) {
		ev, ok := obj.(*v1.Event)
		if !ok {
			return false, fmt.Errorf("unexpected object type %T", obj)
		}
		// Deleting an Event does not make it happen again.
		if t == watch.Deleted {
			return true, nil
		}
		e := event.ClusterEvent{
			InvolvedObjectAPIVersion: ev.InvolvedObject.APIVersion,
			InvolvedObjectKind:       ev.InvolvedObject.Kind,
			InvolvedObjectNamespace:  ev.InvolvedObject.Namespace,
			InvolvedObjectName:       ev.InvolvedObject.Name,
			Type:                     ev.Type,
			Reason:                   ev.Reason,
			Message:                  ev.Message,
		}
		select {
		case out <- e:
			return true, nil
		case <-ctx.Done():
			return false, nil
		}
	})
}

// listWatch hands every listed object to handle as an Added event and then
// watches for changes from the resource version of the list. The apiserver
// closes every watch after its request timeout; such a watch is restarted
// from the last resource version seen. Request errors and watch Error
// events are not retried.
func (s *ClusterSource) listWatch(ctx context.Context, stream string, lw cache.ListerWatcher, handle handleFunc) error {
	list, err := lw.List(metav1.ListOptions{})
	if err != nil {
		return s.streamError(ctx, stream, err)
	}
	listMeta, err := meta.ListAccessor(list)
	if err != nil {
		return &FailureError{Stream: stream, Err: err}
	}
	items, err := meta.ExtractList(list)
	if err != nil {
		return &FailureError{Stream: stream, Err: err}
	}
	for _, item := range items {
		cont, err := handle(item, watch.Added)
		if err != nil {
			return &FailureError{Stream: stream, Err: err}
		}
		if !cont {
			return nil
		}
	}

	resourceVersion := listMeta.GetResourceVersion()
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result error
	wait.NonSlidingUntilWithContext(loopCtx, func(context.Context) {
		w, err := lw.Watch(metav1.ListOptions{
			ResourceVersion:     resourceVersion,
			AllowWatchBookmarks: true,
		})
		if err != nil {
			result = s.streamError(ctx, stream, err)
			cancel()
			return
		}
		resourceVersion, err = consume(ctx, stream, w, resourceVersion, handle)
		if !errors.Is(err, errWatchClosed) {
			result = err
			cancel()
			return
		}
		klog.V(2).Infof("Watch of %s closed by the server, resuming at resource version %q", stream, resourceVersion)
	}, s.MinRestartDelay)
	return result
}

func (s *ClusterSource) PodLogs(ctx context.Context, namespace, name, container string, out chan<- string) error {
	stream := fmt.Sprintf("logs %s/%s", namespace, name)
	opts := s.LogOptions
	opts.Follow = true
	opts.Container = container

	rc, err := s.Client.CoreV1().Pods(namespace).GetLogs(name, &opts).Stream(ctx)
	if err != nil {
		return s.streamError(ctx, stream, err)
	}
	defer rc.Close()
	klog.V(2).Infof("Opened log stream for pod %s/%s", namespace, name)

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			klog.V(2).Infof("Closed log stream for pod %s/%s", namespace, name)
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return s.streamError(ctx, stream, err)
	}
	klog.V(2).Infof("Log stream for pod %s/%s ended", namespace, name)
	return nil
}

// streamError converts err into a FailureError, unless it was caused by
// cancelling ctx.
func (s *ClusterSource) streamError(ctx context.Context, stream string, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return &FailureError{Stream: stream, Err: err}
}

// consume reads w until it is closed or ctx is cancelled, calling handle for
// every Added, Modified and Deleted event. handle returns false to stop
// without error. It returns the last resource version seen, starting from
// resourceVersion, and errWatchClosed if the server closed the watch.
func consume(ctx context.Context, stream string, w watch.Interface, resourceVersion string,
	handle handleFunc) (string, error) {
	defer w.Stop()
	klog.V(2).Infof("Watching %s", stream)
	for {
		select {
		case <-ctx.Done():
			return resourceVersion, nil
		case e, ok := <-w.ResultChan():
			if !ok {
				if ctx.Err() != nil {
					return resourceVersion, nil
				}
				return resourceVersion, errWatchClosed
			}
			if e.Type == watch.Error {
				return resourceVersion, &FailureError{Stream: stream, Err: apierrors.FromObject(e.Object)}
			}
			if e.Type != watch.Bookmark {
				cont, err := handle(e.Object, e.Type)
				if err != nil {
					return resourceVersion, &FailureError{Stream: stream, Err: err}
				}
				if !cont {
					return resourceVersion, nil
				}
			}
			if acc, err := meta.Accessor(e.Object); err == nil && acc.GetResourceVersion() != "" {
				resourceVersion = acc.GetResourceVersion()
			}
		}
	}
}
