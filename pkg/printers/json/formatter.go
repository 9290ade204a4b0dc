// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package json

import (
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/print/list"
	"sigs.k8s.io/ktail/pkg/print/stats"
)

func NewFormatter(ioStreams genericclioptions.IOStreams) list.Formatter {
	return &formatter{
		ioStreams: ioStreams,
	}
}

type formatter struct {
	ioStreams genericclioptions.IOStreams
}

func (jf *formatter) FormatErrorReport(batch event.LogBatch, errorLines []string) error {
	return jf.printEvent("logs", "errorReport", map[string]interface{}{
		"namespace": batch.PodNamespace,
		"pod":       batch.PodName,
		"lines":     errorLines,
	})
}

func (jf *formatter) FormatClusterEvent(ce event.ClusterEvent) error {
	return jf.printEvent("event", ce.Type, map[string]interface{}{
		"apiVersion": ce.InvolvedObjectAPIVersion,
		"kind":       ce.InvolvedObjectKind,
		"namespace":  ce.InvolvedObjectNamespace,
		"name":       ce.InvolvedObjectName,
		"reason":     ce.Reason,
		"message":    ce.Message,
	})
}

func (jf *formatter) FormatErrorEvent(err error) error {
	return jf.printEvent("error", "error", map[string]interface{}{
		"error": err.Error(),
	})
}

func (jf *formatter) FormatSummary(s stats.Stats) error {
	return jf.printEvent("summary", "completed", map[string]interface{}{
		"batches":      s.LogStats.Batches,
		"lines":        s.LogStats.Lines,
		"errorReports": s.LogStats.Reports,
		"errorLines":   s.LogStats.ErrorLines,
		"events":       s.EventStats.Sum(),
		"normal":       s.EventStats.Normal,
		"warnings":     s.EventStats.Warning,
		"other":        s.EventStats.Other,
	})
}

func (jf *formatter) printEvent(t, eventType string, content map[string]interface{}) error {
	m := make(map[string]interface{})
	m["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	m["type"] = t
	m["eventType"] = eventType
	for key, val := range content {
		m[key] = val
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(jf.ioStreams.Out, string(b)+"\n")
	return err
}
