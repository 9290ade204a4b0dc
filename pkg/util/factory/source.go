// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package factory

import (
	"fmt"

	cmdutil "k8s.io/kubectl/pkg/cmd/util"
	"sigs.k8s.io/ktail/pkg/source"
)

// NewClusterSource creates a new ClusterSource from the passed in factory.
func NewClusterSource(f cmdutil.Factory) (source.Source, error) {
	clientset, err := f.KubernetesClientSet()
	if err != nil {
		return nil, fmt.Errorf("error creating clientset: %w", err)
	}
	return source.NewClusterSource(clientset), nil
}
