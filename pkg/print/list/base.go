// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package list

import (
	"regexp"

	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/match"
	"sigs.k8s.io/ktail/pkg/metrics"
	"sigs.k8s.io/ktail/pkg/print/stats"
)

type Formatter interface {
	// FormatErrorReport is called for every LogBatch with at least one
	// line matching the error pattern. errorLines holds those lines.
	FormatErrorReport(batch event.LogBatch, errorLines []string) error
	FormatClusterEvent(ce event.ClusterEvent) error
	FormatErrorEvent(err error) error
	FormatSummary(s stats.Stats) error
}

type FormatterFactory func() Formatter

type BaseListPrinter struct {
	FormatterFactory FormatterFactory

	// ErrorPattern selects the log lines that are reported.
	ErrorPattern *regexp.Regexp

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Print outputs the events from the provided channel using the formatter.
// Batches without error lines are not printed.
// This function will block until the channel is closed or an error event
// is received.
func (b *BaseListPrinter) Print(ch <-chan event.Event) error {
	var s stats.Stats
	formatter := b.FormatterFactory()
	for e := range ch {
		switch e.Type {
		case event.ErrorType:
			_ = formatter.FormatErrorEvent(e.Error)
			return e.Error
		case event.LogBatchType:
			errorLines := match.ErrorLines(b.ErrorPattern, e.LogBatch.Lines)
			s.Handle(e, len(errorLines))
			if len(errorLines) == 0 {
				continue
			}
			b.Metrics.ErrorsFound(len(errorLines))
			if err := formatter.FormatErrorReport(*e.LogBatch, errorLines); err != nil {
				return err
			}
		case event.ClusterEventType:
			s.Handle(e, 0)
			if err := formatter.FormatClusterEvent(*e.ClusterEvent); err != nil {
				return err
			}
		}
	}
	return formatter.FormatSummary(s)
}
