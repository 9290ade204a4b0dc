// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// The testutil package houses utility function for testing.

package testutil

import (
	"fmt"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/ktail/pkg/event"
)

// NewPod returns a pod with the given identity and phase.
func NewPod(namespace, name string, phase v1.PodPhase) *v1.Pod {
	return &v1.Pod{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Pod",
		},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			Labels: map[string]string{
				"app": "test-logger",
			},
		},
		Spec: v1.PodSpec{
			Containers: []v1.Container{
				{
					Name:  "test-logger",
					Image: "gcr.io/cloud-solutions-images/test-logger",
				},
			},
		},
		Status: v1.PodStatus{
			Phase: phase,
		},
	}
}

// NewEvent returns a v1 Event about the object identified by apiVersion,
// kind and name in namespace.
func NewEvent(namespace, apiVersion, kind, name, eventType, reason, message string) *v1.Event {
	return &v1.Event{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Event",
		},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      fmt.Sprintf("%s.%s", name, reason),
		},
		InvolvedObject: v1.ObjectReference{
			APIVersion: apiVersion,
			Kind:       kind,
			Namespace:  namespace,
			Name:       name,
		},
		Type:    eventType,
		Reason:  reason,
		Message: message,
	}
}

// PodEvent returns the PodEvent a watch would report for a pod with the
// given identity and phase.
func PodEvent(t watch.EventType, namespace, name string, phase v1.PodPhase) event.PodEvent {
	return event.PodEvent{
		Type:      t,
		Namespace: namespace,
		Name:      name,
		Phase:     string(phase),
	}
}

// DeploymentEvent returns a ClusterEvent about an apps/v1 Deployment.
func DeploymentEvent(name, eventType, reason, message string) event.ClusterEvent {
	return event.ClusterEvent{
		InvolvedObjectAPIVersion: "apps/v1",
		InvolvedObjectKind:       "Deployment",
		InvolvedObjectNamespace:  "default",
		InvolvedObjectName:       name,
		Type:                     eventType,
		Reason:                   reason,
		Message:                  message,
	}
}
