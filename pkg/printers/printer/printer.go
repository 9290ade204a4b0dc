// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package printer

import (
	"sigs.k8s.io/ktail/pkg/event"
)

type Printer interface {
	// Print writes the events from ch until ch is closed or an ErrorType
	// event is received, in which case the error is returned.
	Print(ch <-chan event.Event) error
}
