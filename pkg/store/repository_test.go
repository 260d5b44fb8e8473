// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kubernetesscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/store"
)

var _ = Describe("RepositoryStore", func() {
	var (
		ctx          context.Context
		client       kubernetes.Interface
		repositories *store.RepositoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = kubernetes.NewWithClient(fake.NewClientBuilder().WithScheme(kubernetesscheme.Scheme).Build(), nil)
		repositories = store.NewRepositoryStore(client, controlNamespace, logr.Discard())
	})

	It("should round-trip a repository", func() {
		Expect(repositories.Create(ctx, "substrate", core.RepositoryConfiguration{
			URL: "https://github.com/paritytech/substrate",
		})).To(Succeed())

		repository, err := repositories.Get(ctx, "substrate")
		Expect(err).NotTo(HaveOccurred())
		Expect(repository).NotTo(BeNil())
		Expect(repository.URL).To(Equal("https://github.com/paritytech/substrate"))
	})

	It("should replace the URL on update", func() {
		Expect(repositories.Create(ctx, "substrate", core.RepositoryConfiguration{URL: "https://old"})).To(Succeed())
		Expect(repositories.Update(ctx, "substrate", core.RepositoryUpdateConfiguration{URL: "https://new"})).To(Succeed())

		repository, err := repositories.Get(ctx, "substrate")
		Expect(err).NotTo(HaveOccurred())
		Expect(repository.URL).To(Equal("https://new"))
	})

	It("should fail updating an unknown repository", func() {
		err := repositories.Update(ctx, "ghost", core.RepositoryUpdateConfiguration{URL: "https://new"})
		Expect(core.ErrorType(err)).To(Equal("UnknownResource"))
	})

	It("should list repositories sorted by id and delete independently", func() {
		Expect(repositories.Create(ctx, "node", core.RepositoryConfiguration{URL: "https://node"})).To(Succeed())
		Expect(repositories.Create(ctx, "cumulus", core.RepositoryConfiguration{URL: "https://cumulus"})).To(Succeed())

		list, err := repositories.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].ID).To(Equal("cumulus"))

		Expect(repositories.Delete(ctx, "cumulus")).To(Succeed())
		list, err = repositories.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(1))
		Expect(list[0].ID).To(Equal("node"))
	})
})
