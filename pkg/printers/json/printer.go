// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package json

import (
	"regexp"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"sigs.k8s.io/ktail/pkg/metrics"
	"sigs.k8s.io/ktail/pkg/print/list"
	"sigs.k8s.io/ktail/pkg/printers/printer"
)

func NewPrinter(ioStreams genericclioptions.IOStreams, errorPattern *regexp.Regexp, m *metrics.Metrics) printer.Printer {
	return &list.BaseListPrinter{
		FormatterFactory: func() list.Formatter {
			return NewFormatter(ioStreams)
		},
		ErrorPattern: errorPattern,
		Metrics:      m,
	}
}
