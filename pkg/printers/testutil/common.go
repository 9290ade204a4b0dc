// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/printers/printer"
	"sigs.k8s.io/ktail/pkg/source"
)

type PrinterFactoryFunc func() printer.Printer

// PrintErrorTest checks that a printer returns the error of the first
// ErrorType event it sees, and nil if the channel closes without one.
func PrintErrorTest(t *testing.T, f PrinterFactoryFunc) {
	failure := &source.FailureError{Stream: "pods", Err: errors.New("connection refused")}

	testCases := map[string]struct {
		events      []event.Event
		expectedErr error
	}{
		"no events": {
			events:      []event.Event{},
			expectedErr: nil,
		},
		"batches and cluster events": {
			events: []event.Event{
				{
					Type: event.LogBatchType,
					LogBatch: &event.LogBatch{
						PodNamespace: "default",
						PodName:      "my-test-logger-abc",
						Lines:        []string{"ok", "an error occurred"},
					},
				},
				{
					Type: event.ClusterEventType,
					ClusterEvent: &event.ClusterEvent{
						InvolvedObjectAPIVersion: "apps/v1",
						InvolvedObjectKind:       "Deployment",
						InvolvedObjectName:       "my-test-logger",
						Type:                     "Normal",
						Reason:                   "ScalingReplicaSet",
						Message:                  "Scaled up replica set my-test-logger-abc to 1",
					},
				},
			},
			expectedErr: nil,
		},
		"stream failure": {
			events: []event.Event{
				{
					Type: event.LogBatchType,
					LogBatch: &event.LogBatch{
						PodNamespace: "default",
						PodName:      "my-test-logger-abc",
						Lines:        []string{"ok"},
					},
				},
				{
					Type:  event.ErrorType,
					Error: failure,
				},
			},
			expectedErr: failure,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			p := f()

			eventChannel := make(chan event.Event, len(tc.events))
			for _, e := range tc.events {
				eventChannel <- e
			}
			close(eventChannel)

			err := p.Print(eventChannel)
			if tc.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.expectedErr, err)
		})
	}
}
