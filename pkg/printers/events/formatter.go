// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"fmt"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/print/list"
	"sigs.k8s.io/ktail/pkg/print/stats"
)

// errorLineIndent prefixes every reported error line.
const errorLineIndent = "     "

func NewFormatter(ioStreams genericclioptions.IOStreams) list.Formatter {
	return &formatter{
		ioStreams: ioStreams,
	}
}

type formatter struct {
	ioStreams genericclioptions.IOStreams
}

func (ef *formatter) FormatErrorReport(batch event.LogBatch, errorLines []string) error {
	ef.print("Error logged in pod %s:", batch.PodName)
	for _, line := range errorLines {
		ef.print("%s%s\n", errorLineIndent, line)
	}
	return nil
}

func (ef *formatter) FormatClusterEvent(ce event.ClusterEvent) error {
	ef.print("%s: [%s] %s", ce.Type, ce.Reason, ce.Message)
	return nil
}

// FormatErrorEvent prints nothing; the error is returned by the printer
// and reported by the command.
func (ef *formatter) FormatErrorEvent(_ error) error {
	return nil
}

func (ef *formatter) FormatSummary(_ stats.Stats) error {
	return nil
}

func (ef *formatter) print(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(ef.ioStreams.Out, format+"\n", a...)
}
