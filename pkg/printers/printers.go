// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package printers

import (
	"regexp"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"sigs.k8s.io/ktail/pkg/metrics"
	"sigs.k8s.io/ktail/pkg/printers/events"
	"sigs.k8s.io/ktail/pkg/printers/json"
	"sigs.k8s.io/ktail/pkg/printers/printer"
)

const (
	TextPrinter = "text"
	JSONPrinter = "json"
)

func GetPrinter(printerType string, ioStreams genericclioptions.IOStreams, errorPattern *regexp.Regexp,
	m *metrics.Metrics) printer.Printer {
	switch printerType { //nolint:gocritic
	case JSONPrinter:
		return json.NewPrinter(ioStreams, errorPattern, m)
	default:
		return events.NewPrinter(ioStreams, errorPattern, m)
	}
}

func SupportedPrinters() []string {
	return []string{TextPrinter, JSONPrinter}
}

func DefaultPrinter() string {
	return TextPrinter
}

func ValidatePrinterType(printerType string) bool {
	for _, p := range SupportedPrinters() {
		if printerType == p {
			return true
		}
	}
	return false
}
