// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"
	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/testutil"
)

func newFakeClient(resource string) (*fake.Clientset, *watch.FakeWatcher) {
	fakeClient := fake.NewSimpleClientset()
	fakeWatcher := watch.NewFake()
	fakeClient.PrependWatchReactor(resource, clienttesting.DefaultWatchReactor(fakeWatcher, nil))
	return fakeClient, fakeWatcher
}

func TestWatchPods(t *testing.T) {
	fakeClient, fakeWatcher := newFakeClient("pods")
	src := NewClusterSource(fakeClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(chan event.PodEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchPods(ctx, "default", out)
	}()

	pending := testutil.NewPod("default", "my-test-logger-abc", v1.PodPending)
	running := testutil.NewPod("default", "my-test-logger-abc", v1.PodRunning)

	fakeWatcher.Add(pending)
	assert.Equal(t, event.PodEvent{
		Type:      watch.Added,
		Namespace: "default",
		Name:      "my-test-logger-abc",
		Phase:     "Pending",
		Container: "test-logger",
	}, <-out)

	fakeWatcher.Modify(running)
	assert.Equal(t, event.PodEvent{
		Type:      watch.Modified,
		Namespace: "default",
		Name:      "my-test-logger-abc",
		Phase:     "Running",
		Container: "test-logger",
	}, <-out)

	fakeWatcher.Delete(running)
	assert.Equal(t, event.PodEvent{
		Type:      watch.Deleted,
		Namespace: "default",
		Name:      "my-test-logger-abc",
		Phase:     "Running",
		Container: "test-logger",
	}, <-out)

	cancel()
	assert.NoError(t, <-errCh)
}

// newRestartingClient returns a fake clientset that serves a new
// FakeWatcher for every watch request on resource. The resource version of
// every request is sent on the returned string channel.
func newRestartingClient(resource string, objects ...runtime.Object) (*fake.Clientset, <-chan *watch.FakeWatcher, <-chan string) {
	fakeClient := fake.NewSimpleClientset(objects...)
	watchers := make(chan *watch.FakeWatcher, 10)
	resourceVersions := make(chan string, 10)
	fakeClient.PrependWatchReactor(resource, func(action clienttesting.Action) (bool, watch.Interface, error) {
		resourceVersions <- action.(clienttesting.WatchAction).GetWatchRestrictions().ResourceVersion
		w := watch.NewFake()
		watchers <- w
		return true, w, nil
	})
	return fakeClient, watchers, resourceVersions
}

func TestWatchPodsResumesClosedWatch(t *testing.T) {
	fakeClient, watchers, resourceVersions := newRestartingClient("pods")
	src := NewClusterSource(fakeClient)
	src.MinRestartDelay = 0

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(chan event.PodEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchPods(ctx, "default", out)
	}()

	first := <-watchers
	assert.Equal(t, "", <-resourceVersions)

	running := testutil.NewPod("default", "my-test-logger-abc", v1.PodRunning)
	running.ResourceVersion = "7"
	first.Add(running)
	assert.Equal(t, watch.Added, (<-out).Type)

	// The apiserver closes watches when its request timeout expires.
	first.Stop()

	second := <-watchers
	assert.Equal(t, "7", <-resourceVersions)

	deleted := running.DeepCopy()
	deleted.ResourceVersion = "8"
	second.Delete(deleted)
	assert.Equal(t, event.PodEvent{
		Type:      watch.Deleted,
		Namespace: "default",
		Name:      "my-test-logger-abc",
		Phase:     "Running",
		Container: "test-logger",
	}, <-out)

	// Bookmarks only move the resource version forward.
	second.Action(watch.Bookmark, &v1.Pod{ObjectMeta: metav1.ObjectMeta{ResourceVersion: "12"}})
	second.Stop()

	<-watchers
	assert.Equal(t, "12", <-resourceVersions)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatchPodsListsExistingPods(t *testing.T) {
	pod := testutil.NewPod("default", "my-test-logger-abc", v1.PodRunning)
	fakeClient, watchers, _ := newRestartingClient("pods", pod)
	src := NewClusterSource(fakeClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(chan event.PodEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchPods(ctx, "default", out)
	}()

	assert.Equal(t, event.PodEvent{
		Type:      watch.Added,
		Namespace: "default",
		Name:      "my-test-logger-abc",
		Phase:     "Running",
		Container: "test-logger",
	}, <-out)

	// The watch starts once the listed pods are handed over.
	<-watchers
	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatchPodsDefaultContainer(t *testing.T) {
	testCases := map[string]struct {
		annotations       map[string]string
		expectedContainer string
	}{
		"first container": {
			expectedContainer: "test-logger",
		},
		"annotated container": {
			annotations: map[string]string{
				"kubectl.kubernetes.io/default-container": "istio-proxy",
			},
			expectedContainer: "istio-proxy",
		},
		"annotation naming a missing container": {
			annotations: map[string]string{
				"kubectl.kubernetes.io/default-container": "missing",
			},
			expectedContainer: "test-logger",
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			fakeClient, fakeWatcher := newFakeClient("pods")
			src := NewClusterSource(fakeClient)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			out := make(chan event.PodEvent)
			errCh := make(chan error, 1)
			go func() {
				errCh <- src.WatchPods(ctx, "default", out)
			}()

			pod := testutil.NewPod("default", "my-test-logger-abc", v1.PodRunning)
			pod.Annotations = tc.annotations
			pod.Spec.Containers = append(pod.Spec.Containers, v1.Container{
				Name:  "istio-proxy",
				Image: "istio/proxyv2",
			})
			fakeWatcher.Add(pod)
			assert.Equal(t, tc.expectedContainer, (<-out).Container)

			cancel()
			assert.NoError(t, <-errCh)
		})
	}
}

func TestWatchPodsWatchErrorEvent(t *testing.T) {
	fakeClient, fakeWatcher := newFakeClient("pods")
	src := NewClusterSource(fakeClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchPods(ctx, "", make(chan event.PodEvent))
	}()

	fakeWatcher.Error(&metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    410,
		Reason:  metav1.StatusReasonExpired,
		Message: "too old resource version",
	})

	err := <-errCh
	var failure *FailureError
	require.True(t, errors.As(err, &failure), "expected FailureError, got %v", err)
	assert.True(t, apierrors.IsResourceExpired(failure.Err))
}

func TestWatchPodsRequestError(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	fakeClient.PrependWatchReactor("pods", clienttesting.DefaultWatchReactor(nil, fmt.Errorf("connection refused")))
	src := NewClusterSource(fakeClient)

	err := src.WatchPods(context.Background(), "default", make(chan event.PodEvent))
	var failure *FailureError
	require.True(t, errors.As(err, &failure), "expected FailureError, got %v", err)
	assert.EqualError(t, err, "pods stream failed: connection refused")
}

func TestWatchPodsCancel(t *testing.T) {
	fakeClient, watchers, _ := newRestartingClient("pods")
	src := NewClusterSource(fakeClient)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchPods(ctx, "default", make(chan event.PodEvent))
	}()
	fakeWatcher := <-watchers
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("WatchPods did not return after cancel")
	}
	assert.True(t, fakeWatcher.IsStopped())
}

func TestWatchEvents(t *testing.T) {
	fakeClient, fakeWatcher := newFakeClient("events")
	src := NewClusterSource(fakeClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(chan event.ClusterEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchEvents(ctx, "", out)
	}()

	scaled := testutil.NewEvent("default", "apps/v1", "Deployment", "my-test-logger",
		v1.EventTypeNormal, "ScalingReplicaSet", "Scaled up replica set my-test-logger-abc to 3")

	fakeWatcher.Add(scaled)
	assert.Equal(t, event.ClusterEvent{
		InvolvedObjectAPIVersion: "apps/v1",
		InvolvedObjectKind:       "Deployment",
		InvolvedObjectNamespace:  "default",
		InvolvedObjectName:       "my-test-logger",
		Type:                     "Normal",
		Reason:                   "ScalingReplicaSet",
		Message:                  "Scaled up replica set my-test-logger-abc to 3",
	}, <-out)

	// Deletions are skipped, so the next event seen is the modification.
	fakeWatcher.Delete(scaled)
	updated := scaled.DeepCopy()
	updated.Message = "Scaled down replica set my-test-logger-abc to 1"
	fakeWatcher.Modify(updated)
	assert.Equal(t, "Scaled down replica set my-test-logger-abc to 1", (<-out).Message)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatchEventsResumesClosedWatch(t *testing.T) {
	fakeClient, watchers, resourceVersions := newRestartingClient("events")
	src := NewClusterSource(fakeClient)
	src.MinRestartDelay = 0

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(chan event.ClusterEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchEvents(ctx, "", out)
	}()

	first := <-watchers
	<-resourceVersions
	scaled := testutil.NewEvent("default", "apps/v1", "Deployment", "my-test-logger",
		v1.EventTypeNormal, "ScalingReplicaSet", "Scaled up replica set my-test-logger-abc to 3")
	scaled.ResourceVersion = "41"
	first.Add(scaled)
	assert.Equal(t, "ScalingReplicaSet", (<-out).Reason)
	first.Stop()

	second := <-watchers
	assert.Equal(t, "41", <-resourceVersions)
	killed := testutil.NewEvent("default", "apps/v1", "Deployment", "my-test-logger",
		v1.EventTypeWarning, "BackOff", "Back-off restarting failed container")
	killed.ResourceVersion = "42"
	second.Add(killed)
	assert.Equal(t, "BackOff", (<-out).Reason)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatchEventsUnexpectedObject(t *testing.T) {
	fakeClient, fakeWatcher := newFakeClient("events")
	src := NewClusterSource(fakeClient)

	errCh := make(chan error, 1)
	go func() {
		errCh <- src.WatchEvents(context.Background(), "", make(chan event.ClusterEvent))
	}()

	fakeWatcher.Add(testutil.NewPod("default", "not-an-event", v1.PodRunning))

	err := <-errCh
	var failure *FailureError
	require.True(t, errors.As(err, &failure), "expected FailureError, got %v", err)
	assert.Equal(t, "events", failure.Stream)
	assert.Contains(t, failure.Err.Error(), "unexpected object type *v1.Pod")
}

func TestPodLogs(t *testing.T) {
	fakeClient := fake.NewSimpleClientset(testutil.NewPod("default", "my-test-logger-abc", v1.PodRunning))
	src := NewClusterSource(fakeClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- src.PodLogs(ctx, "default", "my-test-logger-abc", "test-logger", out)
	}()

	var lines []string
	for line := range out {
		lines = append(lines, line)
	}
	require.NoError(t, <-errCh)
	// The fake clientset always serves the same log body.
	assert.Equal(t, []string{"fake logs"}, lines)

	var logActions int
	for _, a := range fakeClient.Actions() {
		if a.GetVerb() == "get" && a.GetSubresource() == "log" {
			logActions++
			assert.Equal(t, "default", a.GetNamespace())
			opts, ok := a.(clienttesting.GenericAction).GetValue().(*v1.PodLogOptions)
			require.True(t, ok, "expected PodLogOptions, got %T", a)
			assert.Equal(t, "test-logger", opts.Container)
			assert.True(t, opts.Follow)
		}
	}
	assert.Equal(t, 1, logActions)
}
