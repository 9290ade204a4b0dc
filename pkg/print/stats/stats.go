// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package stats

import (
	v1 "k8s.io/api/core/v1"
	"sigs.k8s.io/ktail/pkg/event"
)

// Stats captures the summarized numbers of a watch session.
type Stats struct {
	LogStats   LogStats
	EventStats EventStats
}

// Handle updates the stats based on an event. errorLines is the number of
// lines of a LogBatch that matched the error pattern.
func (s *Stats) Handle(e event.Event, errorLines int) {
	switch e.Type {
	case event.LogBatchType:
		s.LogStats.Inc(len(e.LogBatch.Lines), errorLines)
	case event.ClusterEventType:
		s.EventStats.Inc(e.ClusterEvent.Type)
	}
}

type LogStats struct {
	Batches int
	Lines   int
	// Reports is the number of batches with at least one error line.
	Reports    int
	ErrorLines int
}

func (l *LogStats) Inc(lines, errorLines int) {
	l.Batches++
	l.Lines += lines
	if errorLines > 0 {
		l.Reports++
		l.ErrorLines += errorLines
	}
}

type EventStats struct {
	Normal  int
	Warning int
	Other   int
}

func (e *EventStats) Inc(eventType string) {
	switch eventType {
	case v1.EventTypeNormal:
		e.Normal++
	case v1.EventTypeWarning:
		e.Warning++
	default:
		e.Other++
	}
}

func (e *EventStats) Sum() int {
	return e.Normal + e.Warning + e.Other
}
