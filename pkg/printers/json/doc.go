// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package json provides a printer that outputs the eventstream in json
// format. Each event is printed as a json object, so the output will
// appear as a stream of json objects, each representing a single event.
//
// Every event will contain the following properties:
//   - timestamp: RFC3339-formatted timestamp describing when the event was
//     printed.
//   - type: One of "logs", "event", "error" or "summary".
//   - eventType: A subtype, described below.
//
// Logs events are printed for every window of a pod's log with at least one
// line matching the error pattern. They have the following fields:
// * eventType (string) - "errorReport"
// * namespace (string) - The pod's namespace.
// * pod (string) - The pod's name.
// * lines (array of strings) - The matching lines, in order.
//
// Event events correspond to a cluster event about a matching Deployment.
// They have the following fields:
// * eventType (string) - The cluster event type, usually "Normal" or
// "Warning".
// * apiVersion (string) - The involved object's apiVersion.
// * kind (string) - The involved object's kind.
// * namespace (string) - The involved object's namespace.
// * name (string) - The involved object's name.
// * reason (string)
// * message (string)
//
// Error events correspond to the fatal error that ended the watch. They have
// the following fields:
// * eventType (string) - "error"
// * error (string) - The error message.
//
// A summary event is printed when the watch ends without an error:
// * eventType (string) - "completed"
// * batches (number) - Number of non-empty log windows.
// * lines (number) - Number of log lines read.
// * errorReports (number) - Number of logs events printed.
// * errorLines (number) - Number of log lines matching the error pattern.
// * events (number) - Number of event events printed.
// * warnings (number) - Number of those with eventType "Warning".
package json
