// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package match decides which pods are tailed, which cluster events are
// reported and which log lines count as errors.
package match

import (
	"regexp"

	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/ktail/pkg/event"
)

// PodMatcher selects the running pods whose logs are tailed.
type PodMatcher struct {
	// Namespace restricts matches to a single namespace. Empty matches
	// every namespace.
	Namespace string
	// Pattern is matched against the pod name. It is unanchored, so any
	// substring match is enough.
	Pattern *regexp.Regexp
}

// Match reports whether the pod in e should have its logs tailed.
func (m PodMatcher) Match(e event.PodEvent) bool {
	if m.Namespace != "" && e.Namespace != m.Namespace {
		klog.V(5).Infof("pod %s: namespace does not match %q", e.Key(), m.Namespace)
		return false
	}
	if !m.Pattern.MatchString(e.Name) {
		klog.V(5).Infof("pod %s: name does not match %q", e.Key(), m.Pattern)
		return false
	}
	if e.Phase != string(v1.PodRunning) {
		klog.V(5).Infof("pod %s: phase is %q", e.Key(), e.Phase)
		return false
	}
	return true
}

var deploymentAPIVersion = appsv1.SchemeGroupVersion.String()

// EventMatcher selects the cluster events about matching Deployments.
type EventMatcher struct {
	// Pattern is matched against the name of the involved Deployment.
	Pattern *regexp.Regexp
}

// Match reports whether e is about an apps/v1 Deployment whose name matches
// the pattern.
func (m EventMatcher) Match(e event.ClusterEvent) bool {
	return e.InvolvedObjectAPIVersion == deploymentAPIVersion &&
		e.InvolvedObjectKind == "Deployment" &&
		m.Pattern.MatchString(e.InvolvedObjectName)
}

// ErrorLines returns the lines matching pattern, in order. Each line is
// matched on its own.
func ErrorLines(pattern *regexp.Regexp, lines []string) []string {
	var matched []string
	for _, line := range lines {
		if pattern.MatchString(line) {
			matched = append(matched, line)
		}
	}
	return matched
}
