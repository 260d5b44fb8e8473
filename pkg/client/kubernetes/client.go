// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	kubernetesscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// JSONPatchOperation is a single RFC 6902 operation.
type JSONPatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Interface is the typed gateway to the cluster the control plane manages.
// Mutations rely on server-generated resource versions; conflicts are surfaced to the
// caller, which decides whether to retry.
type Interface interface {
	// Client returns the underlying controller-runtime client.
	Client() client.Client
	// RESTConfig returns the rest config the client was built from. It is nil for
	// fake-backed instances.
	RESTConfig() *rest.Config

	// Get reads the named object into obj. It returns false without error when the
	// object does not exist.
	Get(ctx context.Context, namespace, name string, obj client.Object) (bool, error)
	// Create creates obj.
	Create(ctx context.Context, obj client.Object) error
	// Update replaces obj.
	Update(ctx context.Context, obj client.Object) error
	// Delete deletes obj. NotFound is returned to the caller, not swallowed.
	Delete(ctx context.Context, obj client.Object, opts ...client.DeleteOption) error
	// PatchJSON applies a JSON patch to obj.
	PatchJSON(ctx context.Context, obj client.Object, ops []JSONPatchOperation) error
	// List lists objects into list, optionally restricted by label selectors or namespaces.
	List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error

	// PodExecutor returns the executor for attaching to pods.
	PodExecutor() PodExecutor
}

type clientSet struct {
	client     client.Client
	restConfig *rest.Config
	executor   PodExecutor
}

// NewFromKubeconfig creates an Interface from the given kubeconfig path, falling back
// to the in-cluster configuration when the path is empty.
func NewFromKubeconfig(kubeconfigPath string) (Interface, error) {
	var (
		restConfig *rest.Config
		err        error
	)

	if kubeconfigPath == "" {
		restConfig, err = rest.InClusterConfig()
	} else {
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed loading rest config: %w", err)
	}

	c, err := client.New(restConfig, client.Options{Scheme: kubernetesscheme.Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed creating client: %w", err)
	}

	return &clientSet{
		client:     c,
		restConfig: restConfig,
		executor:   NewPodExecutor(restConfig),
	}, nil
}

// NewWithClient creates an Interface backed by the given client. Exec operations fail
// unless an executor is provided, which makes this constructor suitable for tests.
func NewWithClient(c client.Client, executor PodExecutor) Interface {
	if executor == nil {
		executor = noopExecutor{}
	}
	return &clientSet{client: c, executor: executor}
}

func (c *clientSet) Client() client.Client {
	return c.client
}

func (c *clientSet) RESTConfig() *rest.Config {
	return c.restConfig
}

func (c *clientSet) Get(ctx context.Context, namespace, name string, obj client.Object) (bool, error) {
	if err := c.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, obj); err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *clientSet) Create(ctx context.Context, obj client.Object) error {
	return c.client.Create(ctx, obj)
}

func (c *clientSet) Update(ctx context.Context, obj client.Object) error {
	return c.client.Update(ctx, obj)
}

func (c *clientSet) Delete(ctx context.Context, obj client.Object, opts ...client.DeleteOption) error {
	return c.client.Delete(ctx, obj, opts...)
}

func (c *clientSet) PatchJSON(ctx context.Context, obj client.Object, ops []JSONPatchOperation) error {
	data, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed marshalling patch operations: %w", err)
	}
	return c.client.Patch(ctx, obj, client.RawPatch(types.JSONPatchType, data))
}

func (c *clientSet) List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error {
	return c.client.List(ctx, list, opts...)
}

func (c *clientSet) PodExecutor() PodExecutor {
	return c.executor
}

type noopExecutor struct{}

func (noopExecutor) Execute(_ context.Context, _, _, _ string, _ ...string) (string, error) {
	return "", fmt.Errorf("pod exec is not supported by this client")
}

// EscapeJSONPointer escapes a string for use inside a JSON pointer path.
func EscapeJSONPointer(s string) string {
	out := make([]byte, 0, len(s))
	for i := range len(s) {
		switch s[i] {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
