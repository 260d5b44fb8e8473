// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package ingress owns the singleton ingress of the playground. Every session
// subdomain is one rule of that ingress; all writers go through the Router, which
// serializes concurrent mutations via bounded optimistic retry.
package ingress

import (
	"context"
	"fmt"
	"sort"

	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
)

// WebPort is the port every session container serves its IDE on. The ingress always
// routes the root path of a session subdomain there.
const WebPort int32 = 3000

// conflictBackoff bounds the optimistic retry to three attempts.
var conflictBackoff = wait.Backoff{Steps: 3, Duration: retry.DefaultRetry.Duration, Factor: retry.DefaultRetry.Factor, Jitter: retry.DefaultRetry.Jitter}

// Router mutates the rules of the singleton ingress. Rule identity is the host field.
type Router struct {
	client    kubernetes.Interface
	namespace string
	host      string
}

// NewRouter creates a Router operating on the singleton ingress of the given control
// namespace. host is the base domain under which session subdomains are allocated.
func NewRouter(client kubernetes.Interface, namespace, host string) *Router {
	return &Router{client: client, namespace: namespace, host: host}
}

// Host returns the base domain of the router.
func (r *Router) Host() string {
	return r.host
}

// SessionHost returns the subdomain routing to the given session.
func (r *Router) SessionHost(sessionID string) string {
	return core.Subdomain(r.host, sessionID)
}

// Upsert adds the rule for the given session, replacing any existing rule with the
// same host.
func (r *Router) Upsert(ctx context.Context, sessionID string, ports []core.Port) error {
	rule := r.rule(sessionID, ports)
	return r.mutate(ctx, func(rules []networkingv1.IngressRule) []networkingv1.IngressRule {
		out := filterHost(rules, rule.Host)
		return append(out, rule)
	})
}

// Remove deletes the rule for the given session. Removing an absent rule is a no-op.
func (r *Router) Remove(ctx context.Context, sessionID string) error {
	host := r.SessionHost(sessionID)
	return r.mutate(ctx, func(rules []networkingv1.IngressRule) []networkingv1.IngressRule {
		return filterHost(rules, host)
	})
}

// Sync replaces all session rules with exactly the given routes, keyed by session id.
// Rules for hosts outside the router's base domain are preserved.
func (r *Router) Sync(ctx context.Context, routes map[string][]core.Port) error {
	return r.mutate(ctx, func(rules []networkingv1.IngressRule) []networkingv1.IngressRule {
		out := make([]networkingv1.IngressRule, 0, len(rules)+len(routes))
		for _, rule := range rules {
			if !isSubdomainOf(rule.Host, r.host) {
				out = append(out, rule)
			}
		}

		ids := make([]string, 0, len(routes))
		for id := range routes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, r.rule(id, routes[id]))
		}
		return out
	})
}

// mutate runs a read-modify-replace cycle on the ingress rules, retrying from scratch
// on resource version conflicts, bounded to three attempts.
func (r *Router) mutate(ctx context.Context, transform func([]networkingv1.IngressRule) []networkingv1.IngressRule) error {
	err := retry.RetryOnConflict(conflictBackoff, func() error {
		ingress := &networkingv1.Ingress{}
		found, err := r.client.Get(ctx, r.namespace, core.IngressName, ingress)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("ingress %s/%s not found", r.namespace, core.IngressName)
		}

		ingress.Spec.Rules = transform(ingress.Spec.Rules)
		return r.client.Update(ctx, ingress)
	})
	return core.Failure(err)
}

func (r *Router) rule(sessionID string, ports []core.Port) networkingv1.IngressRule {
	service := core.ExternalServiceName(sessionID)

	paths := make([]networkingv1.HTTPIngressPath, 0, len(ports)+1)
	paths = append(paths, httpIngressPath("/", service, WebPort))
	for _, port := range ports {
		paths = append(paths, httpIngressPath(port.Path, service, port.Port))
	}

	return networkingv1.IngressRule{
		Host: r.SessionHost(sessionID),
		IngressRuleValue: networkingv1.IngressRuleValue{
			HTTP: &networkingv1.HTTPIngressRuleValue{Paths: paths},
		},
	}
}

func httpIngressPath(path, service string, port int32) networkingv1.HTTPIngressPath {
	pathType := networkingv1.PathTypePrefix
	return networkingv1.HTTPIngressPath{
		Path:     path,
		PathType: &pathType,
		Backend: networkingv1.IngressBackend{
			Service: &networkingv1.IngressServiceBackend{
				Name: service,
				Port: networkingv1.ServiceBackendPort{Number: port},
			},
		},
	}
}

func filterHost(rules []networkingv1.IngressRule, host string) []networkingv1.IngressRule {
	out := make([]networkingv1.IngressRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Host != host {
			out = append(out, rule)
		}
	}
	return out
}

func isSubdomainOf(host, base string) bool {
	if len(host) <= len(base)+1 {
		return false
	}
	return host[len(host)-len(base):] == base && host[len(host)-len(base)-1] == '.'
}
