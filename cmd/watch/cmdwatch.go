// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-errors/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/klog/v2"
	cmdutil "k8s.io/kubectl/pkg/cmd/util"
	"k8s.io/utils/clock"
	"sigs.k8s.io/ktail/pkg/config"
	ktailerrors "sigs.k8s.io/ktail/pkg/errors"
	"sigs.k8s.io/ktail/pkg/event"
	"sigs.k8s.io/ktail/pkg/match"
	"sigs.k8s.io/ktail/pkg/metrics"
	"sigs.k8s.io/ktail/pkg/printers"
	"sigs.k8s.io/ktail/pkg/source"
	"sigs.k8s.io/ktail/pkg/tail"
	"sigs.k8s.io/ktail/pkg/util/factory"
)

// SourceFactoryFunc creates the Source the command watches.
type SourceFactoryFunc func(f cmdutil.Factory) (source.Source, error)

func GetWatchRunner(f cmdutil.Factory, ioStreams genericclioptions.IOStreams) *WatchRunner {
	r := &WatchRunner{
		factory:           f,
		ioStreams:         ioStreams,
		SourceFactoryFunc: factory.NewClusterSource,
		clock:             clock.RealClock{},
		options:           config.NewOptions(),
	}
	c := &cobra.Command{
		Use:   "watch",
		Short: "Print errors logged by matching pods and events of matching deployments",
		Long: `Watch pods whose name matches --pod-pattern and follow their logs while they run.
Log lines are grouped into windows of --window; every line matching
--error-pattern is printed under the name of the pod that logged it. Events
about apps/v1 Deployments whose name matches --pod-pattern are printed as
they happen.`,
		Example: `  # Report errors logged by my-test-logger pods in the current namespace
  ktail watch --pod-pattern my-test-logger

  # Watch every namespace for five minutes and print JSON
  ktail watch -A --timeout 5m -o json`,
		Args: cobra.NoArgs,
		RunE: r.runE,
	}
	c.Flags().StringVar(&r.configFile, "config", "",
		"Path to a YAML file with watch settings. Flags override settings from the file.")
	c.Flags().StringVar(&r.options.PodPattern, "pod-pattern", r.options.PodPattern,
		"Regular expression matched against pod and deployment names.")
	c.Flags().StringVar(&r.options.ErrorPattern, "error-pattern", r.options.ErrorPattern,
		"Regular expression selecting the log lines to report.")
	c.Flags().DurationVar(&r.options.Window.Duration, "window", r.options.Window.Duration,
		"Length of the windows log lines are grouped into.")
	c.Flags().BoolVarP(&r.options.AllNamespaces, "all-namespaces", "A", r.options.AllNamespaces,
		"Watch pods and events in every namespace.")
	c.Flags().BoolVar(&r.options.Logs, "logs", r.options.Logs,
		"Follow the logs of matching pods.")
	c.Flags().BoolVar(&r.options.Events, "events", r.options.Events,
		"Report events of matching deployments.")
	c.Flags().StringVarP(&r.options.Output, "output", "o", r.options.Output,
		"Output format, must be one of text or json.")
	c.Flags().DurationVar(&r.timeout, "timeout", 0,
		"Stop watching after this long. Zero means watch until interrupted.")
	c.Flags().StringVar(&r.metricsAddr, "metrics-bind-address", "",
		"Address to serve Prometheus metrics on, e.g. :8080. Disabled when empty.")

	r.command = c
	return r
}

// WatchCommand returns the watch command. Errors are reported with the
// exit code matching their type.
func WatchCommand(f cmdutil.Factory, ioStreams genericclioptions.IOStreams) *cobra.Command {
	r := GetWatchRunner(f, ioStreams)
	r.command.RunE = nil
	r.command.Run = func(cmd *cobra.Command, args []string) {
		ktailerrors.CheckErr(cmd.ErrOrStderr(), r.runE(cmd, args), "ktail")
	}
	return r.command
}

// WatchRunner captures the parameters for the command and contains
// the run function.
type WatchRunner struct {
	command   *cobra.Command
	ioStreams genericclioptions.IOStreams
	factory   cmdutil.Factory

	SourceFactoryFunc SourceFactoryFunc
	clock             clock.WithTicker

	// options holds the flag values. Only flags that were set override
	// the config file.
	options     *config.Options
	configFile  string
	timeout     time.Duration
	metricsAddr string
}

// runE resolves the settings, starts the log and event pipelines and
// prints what they report until they end, the timeout expires or the
// process is interrupted.
func (r *WatchRunner) runE(cmd *cobra.Command, _ []string) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	src, err := r.SourceFactoryFunc(r.factory)
	if err != nil {
		return errors.WrapPrefix(err, "error creating source", 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var m *metrics.Metrics
	if r.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		ln, err := net.Listen("tcp", r.metricsAddr)
		if err != nil {
			return errors.WrapPrefix(err, "error listening for metrics", 1)
		}
		go func() {
			if err := metrics.Serve(ctx, ln, reg); err != nil {
				klog.Errorf("metrics server: %v", err)
			}
		}()
	}

	var channels []<-chan event.Event
	if cfg.Logs {
		tailer := &tail.LogTailer{
			Source: src,
			Matcher: match.PodMatcher{
				Namespace: cfg.Namespace,
				Pattern:   cfg.PodPattern,
			},
			WindowSize: cfg.Window,
			Clock:      r.clock,
			Metrics:    m,
		}
		channels = append(channels, tailer.Tail(ctx))
	}
	if cfg.Events {
		watcher := &tail.EventWatcher{
			Source:    src,
			Namespace: cfg.Namespace,
			Matcher:   match.EventMatcher{Pattern: cfg.PodPattern},
			Metrics:   m,
		}
		channels = append(channels, watcher.Watch(ctx))
	}
	eventChannel := tail.Merge(ctx, channels...)

	printer := printers.GetPrinter(cfg.Output, r.ioStreams, cfg.ErrorPattern, m)
	err = printer.Print(eventChannel)

	// The printer stops at the first error. Shut the pipelines down and
	// wait for them so no goroutine outlives the command.
	cancel()
	for range eventChannel {
	}
	return err
}

// loadConfig merges the config file, if any, with the flags that were set
// and validates the result.
func (r *WatchRunner) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := config.NewOptions()
	if r.configFile != "" {
		if err := opts.LoadFile(r.configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("pod-pattern") {
		opts.PodPattern = r.options.PodPattern
	}
	if flags.Changed("error-pattern") {
		opts.ErrorPattern = r.options.ErrorPattern
	}
	if flags.Changed("window") {
		opts.Window = r.options.Window
	}
	if flags.Changed("all-namespaces") {
		opts.AllNamespaces = r.options.AllNamespaces
	}
	if flags.Changed("logs") {
		opts.Logs = r.options.Logs
	}
	if flags.Changed("events") {
		opts.Events = r.options.Events
	}
	if flags.Changed("output") {
		opts.Output = r.options.Output
	}

	namespace, explicit, err := r.factory.ToRawKubeConfigLoader().Namespace()
	if err != nil {
		return nil, errors.WrapPrefix(err, "error resolving namespace", 1)
	}
	if explicit {
		opts.Namespace = namespace
	}
	return opts.Complete(namespace)
}
