// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package flowcontrol detects whether the apiserver does its own request
// throttling, in which case the client-side rate limiter can be turned off.
// Every tailed pod holds an open log request, so the default client-side
// limits would delay opening streams when many pods match.
package flowcontrol

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	flowcontrolapi "k8s.io/api/flowcontrol/v1beta2"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/rest"
)

// IsEnabled returns true if the server has the PriorityAndFairness flow
// control filter enabled. It pings the server and looks for the header
// naming the flow schema that matched the request.
func IsEnabled(ctx context.Context, config *rest.Config) (bool, error) {
	// The round tripper handles TLS, auth, user agent and impersonation.
	roundTripper, err := rest.TransportFor(config)
	if err != nil {
		return false, fmt.Errorf("building round tripper: %w", err)
	}

	u, err := serverURL(config)
	if err != nil {
		return false, fmt.Errorf("building server URL: %w", err)
	}
	// The ping endpoint is small and fast.
	u.Path = "/livez/ping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	if config.UserAgent != "" {
		req.Header.Set("User-Agent", config.UserAgent)
	}

	resp, err := roundTripper.RoundTrip(req)
	if err != nil {
		return false, fmt.Errorf("making %s request: %w", u.Path, err)
	}
	defer resp.Body.Close()

	// The response status is ignored; the header is enough.
	return resp.Header.Get(flowcontrolapi.ResponseHeaderMatchedFlowSchemaUID) != "", nil
}

func serverURL(config *rest.Config) (*url.URL, error) {
	hostURL, _, err := rest.DefaultServerURL(config.Host, config.APIPath, schema.GroupVersion{}, rest.IsConfigTransportTLS(*config))
	if err != nil {
		return nil, err
	}
	return hostURL, nil
}
