// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package pool derives the logical node pools of the playground from node labels.
// Pools are not stored anywhere; the labels are the source of truth.
package pool

import (
	"context"
	"sort"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
)

// Lister resolves pools from the cluster's nodes.
type Lister struct {
	client kubernetes.Interface
}

// NewLister creates a pool Lister.
func NewLister(client kubernetes.Interface) *Lister {
	return &Lister{client: client}
}

// Get returns the pool with the given id, or nil when no node carries its label.
func (l *Lister) Get(ctx context.Context, id string) (*core.Pool, error) {
	nodes := &corev1.NodeList{}
	if err := l.client.List(ctx, nodes, client.MatchingLabels{core.LabelNodePool: id}); err != nil {
		return nil, core.Failure(err)
	}
	if len(nodes.Items) == 0 {
		return nil, nil
	}
	return nodesToPool(id, nodes.Items), nil
}

// List returns all user-typed pools sorted by id. System pools carry
// pool-type=system and are not offered to sessions.
func (l *Lister) List(ctx context.Context) ([]core.Pool, error) {
	nodes := &corev1.NodeList{}
	if err := l.client.List(ctx, nodes,
		client.HasLabels{core.LabelNodePool},
		client.MatchingLabels{core.LabelNodePoolType: core.PoolTypeUser},
	); err != nil {
		return nil, core.Failure(err)
	}

	byPool := map[string][]corev1.Node{}
	for _, node := range nodes.Items {
		id := node.Labels[core.LabelNodePool]
		byPool[id] = append(byPool[id], node)
	}

	pools := make([]core.Pool, 0, len(byPool))
	for id, members := range byPool {
		pools = append(pools, *nodesToPool(id, members))
	}

	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools, nil
}

func nodesToPool(id string, nodes []corev1.Node) *core.Pool {
	pool := &core.Pool{
		ID:           id,
		InstanceType: nodes[0].Labels[core.LabelInstanceType],
		Nodes:        make([]core.Node, 0, len(nodes)),
	}
	for _, node := range nodes {
		hostname := node.Labels[core.LabelHostname]
		if hostname == "" {
			hostname = node.Name
		}
		pool.Nodes = append(pool.Nodes, core.Node{Hostname: hostname})
	}
	sort.Slice(pool.Nodes, func(i, j int) bool { return pool.Nodes[i].Hostname < pool.Nodes[j].Hostname })
	return pool
}
