// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubernetesscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/store"
)

var _ = Describe("UserStore", func() {
	var (
		ctx    context.Context
		client kubernetes.Interface
		users  *store.UserStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = kubernetes.NewWithClient(fake.NewClientBuilder().WithScheme(kubernetesscheme.Scheme).Build(), nil)
		users = store.NewUserStore(client, logr.Discard())
	})

	It("should return nil for an unknown user", func() {
		user, err := users.Get(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(user).To(BeNil())
	})

	It("should persist a user as an annotated namespace", func() {
		Expect(users.Create(ctx, "alice", core.UserConfiguration{
			Role:        "admin",
			Preferences: map[string]string{core.PreferencePoolAffinity: "gpu"},
		})).To(Succeed())

		namespace := &corev1.Namespace{}
		found, err := client.Get(ctx, "", "user-alice", namespace)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(namespace.Labels).To(HaveKeyWithValue(core.LabelResourceID, "alice"))
		Expect(namespace.Annotations).To(HaveKeyWithValue(core.AnnotationRole, "admin"))

		user, err := users.Get(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(user).NotTo(BeNil())
		Expect(user.Role).To(Equal("admin"))
		Expect(user.PoolAffinity()).To(Equal("gpu"))
	})

	It("should create the session service account in the user namespace", func() {
		Expect(users.Create(ctx, "alice", core.UserConfiguration{Role: "user"})).To(Succeed())

		serviceAccount := &corev1.ServiceAccount{}
		found, err := client.Get(ctx, "user-alice", store.SessionServiceAccountName, serviceAccount)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
	})

	It("should list users and skip malformed namespaces", func() {
		Expect(users.Create(ctx, "bob", core.UserConfiguration{Role: "user"})).To(Succeed())
		Expect(users.Create(ctx, "alice", core.UserConfiguration{Role: "admin"})).To(Succeed())

		malformed := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
			Name: "user-ghost",
			Labels: map[string]string{
				core.LabelApp:       core.LabelAppValue,
				core.LabelComponent: core.ComponentUser,
			},
		}}
		Expect(client.Create(ctx, malformed)).To(Succeed())

		list, err := users.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].ID).To(Equal("alice"))
		Expect(list[1].ID).To(Equal("bob"))
	})

	It("should patch role and preferences on update", func() {
		Expect(users.Create(ctx, "alice", core.UserConfiguration{Role: "user"})).To(Succeed())
		Expect(users.Update(ctx, "alice", core.UserUpdateConfiguration{
			Role:        "admin",
			Preferences: map[string]string{core.PreferencePoolAffinity: "gpu"},
		})).To(Succeed())

		user, err := users.Get(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Role).To(Equal("admin"))
		Expect(user.PoolAffinity()).To(Equal("gpu"))
	})

	It("should fail updating an unknown user", func() {
		err := users.Update(ctx, "ghost", core.UserUpdateConfiguration{Role: "admin"})
		Expect(core.ErrorType(err)).To(Equal("UnknownResource"))
	})

	It("should delete the user namespace and tolerate re-deletes", func() {
		Expect(users.Create(ctx, "alice", core.UserConfiguration{Role: "user"})).To(Succeed())
		Expect(users.Delete(ctx, "alice")).To(Succeed())
		Expect(users.Delete(ctx, "alice")).To(Succeed())
	})
})
