// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package reaper_test

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubernetesscheme "k8s.io/client-go/kubernetes/scheme"
	testclock "k8s.io/utils/clock/testing"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/authorization"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/config"
	"github.com/substrate/playground/pkg/ingress"
	"github.com/substrate/playground/pkg/metrics"
	"github.com/substrate/playground/pkg/pool"
	"github.com/substrate/playground/pkg/reaper"
	"github.com/substrate/playground/pkg/repository"
	"github.com/substrate/playground/pkg/session"
	"github.com/substrate/playground/pkg/store"
)

const (
	controlNamespace = "playground"
	baseHost         = "playground.example.com"
)

var readySource = core.RepositorySource{RepositoryID: "substrate", RepositoryVersionID: "abc123"}

var _ = Describe("Reaper", func() {
	var (
		ctx          context.Context
		c            kubernetes.Interface
		clk          *testclock.FakeClock
		router       *ingress.Router
		orchestrator *session.Orchestrator
		sweeper      *reaper.Reaper
		alice        *core.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		clk = testclock.NewFakeClock(time.Now())

		c = kubernetes.NewWithClient(fake.NewClientBuilder().WithScheme(kubernetesscheme.Scheme).WithObjects(
			&networkingv1.Ingress{ObjectMeta: metav1.ObjectMeta{
				Namespace: controlNamespace,
				Name:      core.IngressName,
			}},
			&corev1.Node{ObjectMeta: metav1.ObjectMeta{
				Name:   "node-a",
				Labels: map[string]string{core.LabelNodePool: "default", core.LabelNodePoolType: core.PoolTypeUser, core.LabelHostname: "node-a"},
			}},
			&corev1.PersistentVolumeClaim{ObjectMeta: metav1.ObjectMeta{
				Namespace: controlNamespace,
				Name:      core.VolumeTemplateName("substrate"),
				Annotations: map[string]string{
					core.AnnotationVersion: "abc123",
					core.AnnotationRuntime: "baseImage: substrate/workspace:v1\nports:\n- name: node\n  path: /wss\n  port: 9944\n",
				},
			}},
		).Build(), nil)

		roles := store.NewRoleStore(c, controlNamespace, logr.Discard())
		Expect(roles.Create(ctx, "user", core.RoleConfiguration{Permissions: map[core.ResourceType][]core.Permission{
			core.ResourceSession: {core.PermissionCreate},
		}})).To(Succeed())

		conf := &config.Configuration{
			BaseImage:          "playground/workspace:latest",
			DefaultDuration:    3 * time.Hour,
			MaxDuration:        24 * time.Hour,
			DefaultPool:        "default",
			MaxSessionsPerNode: 10,
		}
		authorizer := authorization.New(roles)
		pipeline := repository.NewPipeline(c, controlNamespace, "", metrics.NewNopRecorder(), logr.Discard())
		pools := pool.NewLister(c)
		router = ingress.NewRouter(c, controlNamespace, baseHost)
		orchestrator = session.NewOrchestrator(c, authorizer, pipeline, pools, router, conf, controlNamespace, metrics.NewNopRecorder(), logr.Discard())
		sweeper = reaper.New(orchestrator, router, metrics.NewNopRecorder(), logr.Discard(), 0, clk)

		alice = &core.User{ID: "alice", Role: "user"}
	})

	deploy := func(user *core.User, startTime time.Time) {
		Expect(orchestrator.Create(ctx, user, user.ID, core.SessionConfiguration{RepositorySource: readySource})).To(Succeed())

		pod := &corev1.Pod{}
		found, err := c.Get(ctx, core.SessionNamespace(user.ID), session.PodName, pod)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		pod.Spec.NodeName = "node-a"
		Expect(c.Update(ctx, pod)).To(Succeed())
		pod.Status.Phase = corev1.PodRunning
		pod.Status.StartTime = &metav1.Time{Time: startTime}
		Expect(c.Client().Status().Update(ctx, pod)).To(Succeed())
	}

	sessionIDs := func() []string {
		sessions, err := orchestrator.Sessions(ctx)
		Expect(err).NotTo(HaveOccurred())
		out := make([]string, 0, len(sessions))
		for _, sess := range sessions {
			out = append(out, sess.ID)
		}
		return out
	}

	Describe("Sweep", func() {
		It("should delete sessions past their maximum duration", func() {
			deploy(alice, clk.Now().Add(-4*time.Hour))
			deploy(&core.User{ID: "bob", Role: "user"}, clk.Now().Add(-time.Hour))

			sweeper.Sweep(ctx)

			Expect(sessionIDs()).To(ConsistOf("bob"))
		})

		It("should keep a session alive until its duration elapses", func() {
			deploy(alice, clk.Now())

			sweeper.Sweep(ctx)
			Expect(sessionIDs()).To(ConsistOf("alice"))

			clk.Step(3*time.Hour + time.Minute)
			sweeper.Sweep(ctx)
			Expect(sessionIDs()).To(BeEmpty())
		})

		It("should ignore sessions that are not running", func() {
			Expect(orchestrator.Create(ctx, alice, "alice", core.SessionConfiguration{RepositorySource: readySource})).To(Succeed())

			pod := &corev1.Pod{}
			found, err := c.Get(ctx, "session-alice", session.PodName, pod)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			pod.Status.Phase = corev1.PodPending
			Expect(c.Client().Status().Update(ctx, pod)).To(Succeed())

			clk.Step(48 * time.Hour)
			sweeper.Sweep(ctx)

			Expect(sessionIDs()).To(ConsistOf("alice"))
		})

		It("should remove the ingress rule of a reaped session", func() {
			deploy(alice, clk.Now().Add(-4*time.Hour))

			sweeper.Sweep(ctx)

			obj := &networkingv1.Ingress{}
			_, err := c.Get(ctx, controlNamespace, core.IngressName, obj)
			Expect(err).NotTo(HaveOccurred())
			Expect(obj.Spec.Rules).To(BeEmpty())
		})
	})

	Describe("Rebind", func() {
		It("should restore one rule per running session", func() {
			deploy(alice, clk.Now())
			deploy(&core.User{ID: "bob", Role: "user"}, clk.Now())

			// Simulate rules lost while the process was down.
			obj := &networkingv1.Ingress{}
			_, err := c.Get(ctx, controlNamespace, core.IngressName, obj)
			Expect(err).NotTo(HaveOccurred())
			obj.Spec.Rules = nil
			Expect(c.Update(ctx, obj)).To(Succeed())

			Expect(sweeper.Rebind(ctx)).To(Succeed())

			_, err = c.Get(ctx, controlNamespace, core.IngressName, obj)
			Expect(err).NotTo(HaveOccurred())
			Expect(obj.Spec.Rules).To(HaveLen(2))
			Expect(obj.Spec.Rules[0].HTTP.Paths[0].Backend.Service.Port.Number).To(Equal(ingress.WebPort))
		})

		It("should drop rules of sessions that no longer run", func() {
			Expect(router.Upsert(ctx, "ghost", nil)).To(Succeed())

			Expect(sweeper.Rebind(ctx)).To(Succeed())

			obj := &networkingv1.Ingress{}
			_, err := c.Get(ctx, controlNamespace, core.IngressName, obj)
			Expect(err).NotTo(HaveOccurred())
			Expect(obj.Spec.Rules).To(BeEmpty())
		})
	})
})
