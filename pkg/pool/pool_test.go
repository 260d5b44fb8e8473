// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pool_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubernetesscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/pool"
)

func node(name, poolID, poolType, instanceType string) *corev1.Node {
	return &corev1.Node{ObjectMeta: metav1.ObjectMeta{
		Name: name,
		Labels: map[string]string{
			core.LabelNodePool:     poolID,
			core.LabelNodePoolType: poolType,
			core.LabelInstanceType: instanceType,
			core.LabelHostname:     name,
		},
	}}
}

var _ = Describe("Lister", func() {
	var (
		ctx    context.Context
		lister *pool.Lister
	)

	BeforeEach(func() {
		ctx = context.Background()
		client := kubernetes.NewWithClient(fake.NewClientBuilder().WithScheme(kubernetesscheme.Scheme).WithObjects(
			node("node-a", "default", core.PoolTypeUser, "m5.large"),
			node("node-b", "default", core.PoolTypeUser, "m5.large"),
			node("node-c", "gpu", core.PoolTypeUser, "p3.2xlarge"),
			node("node-d", "control", "system", "m5.xlarge"),
			&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "unpooled"}},
		).Build(), nil)
		lister = pool.NewLister(client)
	})

	It("should group nodes into pools by label", func() {
		pools, err := lister.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pools).To(HaveLen(2))
		Expect(pools[0].ID).To(Equal("default"))
		Expect(pools[0].Nodes).To(HaveLen(2))
		Expect(pools[0].InstanceType).To(Equal("m5.large"))
		Expect(pools[1].ID).To(Equal("gpu"))
		Expect(pools[1].Nodes).To(ConsistOf(core.Node{Hostname: "node-c"}))
	})

	It("should not list system pools", func() {
		pools, err := lister.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, p := range pools {
			Expect(p.ID).NotTo(Equal("control"))
		}
	})

	It("should resolve a single pool", func() {
		p, err := lister.Get(ctx, "gpu")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).NotTo(BeNil())
		Expect(p.InstanceType).To(Equal("p3.2xlarge"))
	})

	It("should resolve a system pool by id", func() {
		p, err := lister.Get(ctx, "control")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).NotTo(BeNil())
		Expect(p.InstanceType).To(Equal("m5.xlarge"))
	})

	It("should return nil for a pool no node belongs to", func() {
		p, err := lister.Get(ctx, "ghost")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeNil())
	})
})
