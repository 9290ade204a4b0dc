// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package config holds the settings of a watch session. Settings can be read
// from a YAML file and overridden by command line flags.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-errors/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/ktail/pkg/printers"
	"sigs.k8s.io/ktail/pkg/window"
	"sigs.k8s.io/yaml"
)

const (
	// DefaultPodPattern matches every pod.
	DefaultPodPattern   = ".+"
	DefaultErrorPattern = "error"
)

// Options is the raw, unvalidated form of a watch session's settings, as
// found in a config file or on the command line.
type Options struct {
	// Namespace to watch. Empty means the namespace of the current
	// kubeconfig context.
	Namespace string `json:"namespace,omitempty"`
	// AllNamespaces watches every namespace and wins over Namespace.
	AllNamespaces bool `json:"allNamespaces,omitempty"`

	PodPattern   string          `json:"podPattern,omitempty"`
	ErrorPattern string          `json:"errorPattern,omitempty"`
	Window       metav1.Duration `json:"window,omitempty"`

	// Logs enables the log pipeline.
	Logs bool `json:"logs"`
	// Events enables the cluster event pipeline.
	Events bool `json:"events"`

	Output string `json:"output,omitempty"`
}

// NewOptions returns Options with every setting at its default.
func NewOptions() *Options {
	return &Options{
		PodPattern:   DefaultPodPattern,
		ErrorPattern: DefaultErrorPattern,
		Window:       metav1.Duration{Duration: window.DefaultSize},
		Logs:         true,
		Events:       true,
		Output:       printers.DefaultPrinter(),
	}
}

// LoadFile reads the YAML file at path into o. Settings missing from the
// file keep their current value.
func (o *Options) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapPrefix(err, "error reading config file", 1)
	}
	if err := yaml.UnmarshalStrict(b, o); err != nil {
		return &InvalidConfigError{
			Field:  "file",
			Reason: fmt.Sprintf("%s: %v", path, err),
		}
	}
	klog.V(3).Infof("loaded config file %s", path)
	return nil
}

// Config is the validated form of Options.
type Config struct {
	// Namespace to watch. Empty means all namespaces.
	Namespace    string
	PodPattern   *regexp.Regexp
	ErrorPattern *regexp.Regexp
	Window       time.Duration
	Logs         bool
	Events       bool
	Output       string
}

// Complete validates o and returns the resulting Config. defaultNamespace
// is used when o names no namespace.
func (o *Options) Complete(defaultNamespace string) (*Config, error) {
	podPattern, err := regexp.Compile(o.PodPattern)
	if err != nil {
		return nil, &InvalidConfigError{Field: "podPattern", Reason: err.Error()}
	}
	errorPattern, err := regexp.Compile(o.ErrorPattern)
	if err != nil {
		return nil, &InvalidConfigError{Field: "errorPattern", Reason: err.Error()}
	}
	if o.Window.Duration <= 0 {
		return nil, &InvalidConfigError{
			Field:  "window",
			Reason: fmt.Sprintf("must be positive, got %s", o.Window.Duration),
		}
	}
	if !o.Logs && !o.Events {
		return nil, &InvalidConfigError{Field: "logs", Reason: "logs and events are both disabled"}
	}
	if !printers.ValidatePrinterType(o.Output) {
		return nil, &InvalidConfigError{
			Field:  "output",
			Reason: fmt.Sprintf("must be one of %v, got %q", printers.SupportedPrinters(), o.Output),
		}
	}

	namespace := o.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	if o.AllNamespaces {
		namespace = ""
	}

	c := &Config{
		Namespace:    namespace,
		PodPattern:   podPattern,
		ErrorPattern: errorPattern,
		Window:       o.Window.Duration,
		Logs:         o.Logs,
		Events:       o.Events,
		Output:       o.Output,
	}
	klog.V(3).Infof("config: namespace=%q podPattern=%q errorPattern=%q window=%s logs=%t events=%t output=%s",
		c.Namespace, c.PodPattern, c.ErrorPattern, c.Window, c.Logs, c.Events, c.Output)
	return c, nil
}

// InvalidConfigError is returned when a setting has an invalid value.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
