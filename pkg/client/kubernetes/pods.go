// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package kubernetes

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/httpstream"
	"k8s.io/client-go/kubernetes/scheme"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// PodExecutor runs commands inside pods and drains their stdout.
type PodExecutor interface {
	// Execute runs the command in the given container without stdin or TTY and
	// returns the collected stdout once the stream reaches EOF.
	Execute(ctx context.Context, namespace, name, containerName string, command ...string) (string, error)
}

// NewPodExecutor returns a podExecutor for the given rest config.
func NewPodExecutor(config *rest.Config) PodExecutor {
	return &podExecutor{config: config}
}

type podExecutor struct {
	config *rest.Config
}

func (p *podExecutor) Execute(ctx context.Context, namespace, name, containerName string, command ...string) (string, error) {
	client, err := corev1client.NewForConfig(p.config)
	if err != nil {
		return "", fmt.Errorf("failed creating corev1 client: %w", err)
	}

	request := client.RESTClient().
		Post().
		Resource("pods").
		Name(name).
		Namespace(namespace).
		SubResource("exec")
	request.VersionedParams(&corev1.PodExecOptions{
		Stdin:     false,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
		Container: containerName,
		Command:   command,
	}, scheme.ParameterCodec)

	// Use a fallback executor with websocket as primary and spdy as fallback similar to kubectl.
	spdyExecutor, err := remotecommand.NewSPDYExecutor(p.config, http.MethodPost, request.URL())
	if err != nil {
		return "", fmt.Errorf("failed to initialize the spdy executor: %w", err)
	}

	websocketExecutor, err := remotecommand.NewWebSocketExecutor(p.config, http.MethodGet, request.URL().String())
	if err != nil {
		return "", fmt.Errorf("failed to initialize the websocket executor: %w", err)
	}

	executor, err := remotecommand.NewFallbackExecutor(websocketExecutor, spdyExecutor, func(err error) bool {
		return httpstream.IsUpgradeFailure(err) || httpstream.IsHTTPSProxyError(err)
	})
	if err != nil {
		return "", fmt.Errorf("failed to initialize the command executor: %w", err)
	}

	var stdout, stderr bytes.Buffer
	if err := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
		Tty:    false,
	}); err != nil {
		return "", fmt.Errorf("failed to execute command: %w", err)
	}

	return stdout.String(), nil
}
