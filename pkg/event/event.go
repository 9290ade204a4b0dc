// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"

	"k8s.io/apimachinery/pkg/watch"
)

// Type is the type of an Event sent on the channels returned by the
// pipelines in pkg/tail.
type Type int

const (
	// LogBatchType events carry one non-empty window of log lines.
	LogBatchType Type = iota
	// ClusterEventType events carry a cluster Event that passed the
	// event filter.
	ClusterEventType
	// ErrorType events carry a fatal error. No more events will be sent
	// on the channel after an ErrorType event.
	ErrorType
)

func (t Type) String() string {
	switch t {
	case LogBatchType:
		return "LogBatch"
	case ClusterEventType:
		return "ClusterEvent"
	case ErrorType:
		return "Error"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Event is the union of everything the pipelines report. Only the field
// matching Type is set.
type Event struct {
	Type Type

	LogBatch *LogBatch

	ClusterEvent *ClusterEvent

	Error error
}

// PodEvent is a snapshot of a pod's identity and phase, as reported by a
// pod watch.
type PodEvent struct {
	// Type is the watch event type (Added, Modified or Deleted).
	Type      watch.EventType
	Namespace string
	Name      string
	Phase     string

	// Container is the container whose log is followed: the one named by
	// the kubectl.kubernetes.io/default-container annotation, or else the
	// first container of the pod.
	Container string
}

// Key returns the namespace/name identity of the pod.
func (p PodEvent) Key() string {
	return p.Namespace + "/" + p.Name
}

// LogBatch holds the lines a single pod logged during one window, in
// arrival order. A LogBatch always has at least one line.
type LogBatch struct {
	PodNamespace string
	PodName      string
	Lines        []string
}

// ClusterEvent is the subset of a v1 Event that ktail reports on.
type ClusterEvent struct {
	InvolvedObjectAPIVersion string
	InvolvedObjectKind       string
	InvolvedObjectNamespace  string
	InvolvedObjectName       string

	Type    string
	Reason  string
	Message string
}
