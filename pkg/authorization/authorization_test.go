// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package authorization_test

import (
	"context"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kubernetesscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/authorization"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/store"
)

var _ = Describe("Authorizer", func() {
	var (
		ctx        context.Context
		roles      *store.RoleStore
		authorizer *authorization.Authorizer
		admin      *core.User
		alice      *core.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		client := kubernetes.NewWithClient(fake.NewClientBuilder().WithScheme(kubernetesscheme.Scheme).Build(), nil)
		roles = store.NewRoleStore(client, "playground", logr.Discard())
		authorizer = authorization.New(roles)

		Expect(roles.Create(ctx, "admin", core.RoleConfiguration{Permissions: map[core.ResourceType][]core.Permission{
			core.ResourceUser:    {core.PermissionRead, core.PermissionCreate, core.PermissionUpdate, core.PermissionDelete},
			core.ResourceSession: {core.PermissionRead, core.PermissionCreate, core.CustomPermission(core.CustomizeSessionName)},
		}})).To(Succeed())
		Expect(roles.Create(ctx, "user", core.RoleConfiguration{Permissions: map[core.ResourceType][]core.Permission{
			core.ResourceSession: {core.PermissionCreate},
		}})).To(Succeed())

		admin = &core.User{ID: "root", Role: "admin"}
		alice = &core.User{ID: "alice", Role: "user"}
	})

	Describe("Ensure", func() {
		It("should allow an exact tuple of the caller's role", func() {
			Expect(authorizer.Ensure(ctx, admin, core.ResourceUser, core.PermissionCreate)).To(Succeed())
		})

		It("should deny every tuple the role lacks", func() {
			for _, resource := range core.AllResourceTypes {
				for _, permission := range []core.Permission{core.PermissionRead, core.PermissionCreate, core.PermissionUpdate, core.PermissionDelete} {
					if resource == core.ResourceSession && permission == core.PermissionCreate {
						continue
					}
					err := authorizer.Ensure(ctx, alice, resource, permission)
					Expect(core.IsUnauthorized(err)).To(BeTrue(), "expected %s %s to be denied", resource, permission.Type)
				}
			}
		})

		It("should deny custom permissions by name", func() {
			Expect(authorizer.Ensure(ctx, admin, core.ResourceSession, core.CustomPermission(core.CustomizeSessionName))).To(Succeed())
			err := authorizer.Ensure(ctx, admin, core.ResourceSession, core.CustomPermission(core.CustomizeSessionDuration))
			Expect(core.IsUnauthorized(err)).To(BeTrue())
		})

		It("should deny a caller whose role does not exist", func() {
			ghost := &core.User{ID: "ghost", Role: "nonexistent"}
			err := authorizer.Ensure(ctx, ghost, core.ResourceSession, core.PermissionCreate)
			Expect(core.IsUnauthorized(err)).To(BeTrue())
		})
	})

	Describe("EnsureScoped", func() {
		It("should let users read and update themselves without any role permission", func() {
			Expect(authorizer.EnsureScoped(ctx, alice, core.ResourceUser, core.PermissionRead, "alice")).To(Succeed())
			Expect(authorizer.EnsureScoped(ctx, alice, core.ResourceUser, core.PermissionUpdate, "alice")).To(Succeed())
			Expect(authorizer.EnsureScoped(ctx, alice, core.ResourceUser, core.PermissionDelete, "alice")).To(Succeed())
		})

		It("should not extend the carve-out to other users", func() {
			err := authorizer.EnsureScoped(ctx, alice, core.ResourceUser, core.PermissionRead, "bob")
			Expect(core.IsUnauthorized(err)).To(BeTrue())
		})

		It("should not extend the carve-out to creation", func() {
			err := authorizer.EnsureScoped(ctx, alice, core.ResourceUser, core.PermissionCreate, "alice")
			Expect(core.IsUnauthorized(err)).To(BeTrue())
		})

		It("should not extend the carve-out beyond users and sessions", func() {
			err := authorizer.EnsureScoped(ctx, alice, core.ResourceRepository, core.PermissionRead, "alice")
			Expect(core.IsUnauthorized(err)).To(BeTrue())
		})

		It("should fall back to the role for admins", func() {
			Expect(authorizer.EnsureScoped(ctx, admin, core.ResourceUser, core.PermissionDelete, "alice")).To(Succeed())
		})
	})
})
