// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package session materializes logical sessions as coordinated sets of Kubernetes
// objects across the session namespace and the control namespace. The control plane
// holds no authoritative session state; everything is derived from the session pod.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/authorization"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/config"
	"github.com/substrate/playground/pkg/ingress"
	"github.com/substrate/playground/pkg/metrics"
	"github.com/substrate/playground/pkg/pool"
	"github.com/substrate/playground/pkg/repository"
)

const (
	// PodName is the name of the single pod of every session namespace.
	PodName = "session"
	// ContainerName is the name of the workspace container of the session pod.
	ContainerName = "session-container"
	// ServiceName is the name of the NodePort service of every session namespace.
	ServiceName = "service"
	// VolumeClaimName is the name of the per-session workspace volume claim.
	VolumeClaimName = "repo"
	// WorkspaceMountPath is where the workspace volume is mounted inside the container.
	WorkspaceMountPath = "/workspace"
)

var workspaceVolumeSize = resource.MustParse("5Gi")

// Orchestrator admits, materializes, observes and tears down sessions.
type Orchestrator struct {
	client     kubernetes.Interface
	authorizer *authorization.Authorizer
	pipeline   *repository.Pipeline
	pools      *pool.Lister
	router     *ingress.Router
	conf       *config.Configuration
	namespace  string
	metrics    *metrics.Recorder
	log        logr.Logger
}

// NewOrchestrator creates an Orchestrator. namespace is the control namespace hosting
// the per-session ExternalName services and the singleton ingress.
func NewOrchestrator(
	client kubernetes.Interface,
	authorizer *authorization.Authorizer,
	pipeline *repository.Pipeline,
	pools *pool.Lister,
	router *ingress.Router,
	conf *config.Configuration,
	namespace string,
	recorder *metrics.Recorder,
	log logr.Logger,
) *Orchestrator {
	return &Orchestrator{
		client:     client,
		authorizer: authorizer,
		pipeline:   pipeline,
		pools:      pools,
		router:     router,
		conf:       conf,
		namespace:  namespace,
		metrics:    recorder,
		log:        log,
	}
}

// Create admits and materializes a new session. On any materialization failure the
// objects created so far are deleted in reverse order, so the cluster ends up
// indistinguishable from the pre-call state.
func (o *Orchestrator) Create(ctx context.Context, caller *core.User, sessionID string, conf core.SessionConfiguration) error {
	if err := o.authorizer.Ensure(ctx, caller, core.ResourceSession, core.PermissionCreate); err != nil {
		return err
	}
	if sessionID != strings.ToLower(caller.ID) {
		if err := o.authorizer.Ensure(ctx, caller, core.ResourceSession, core.CustomPermission(core.CustomizeSessionName)); err != nil {
			return err
		}
	}
	if conf.Duration != nil {
		if err := o.authorizer.Ensure(ctx, caller, core.ResourceSession, core.CustomPermission(core.CustomizeSessionDuration)); err != nil {
			return err
		}
	}
	if conf.PoolAffinity != "" {
		if err := o.authorizer.Ensure(ctx, caller, core.ResourceSession, core.CustomPermission(core.CustomizeSessionPoolAffinity)); err != nil {
			return err
		}
	}

	if existing, err := o.session(ctx, sessionID); err != nil {
		return err
	} else if existing != nil {
		return &core.SessionIDAlreadyUsedError{}
	}

	runtime, err := o.pipeline.Runtime(ctx, conf.RepositorySource)
	if err != nil {
		return err
	}
	if runtime == nil {
		runtime = &core.RepositoryRuntimeConfiguration{}
	}

	poolID := conf.PoolAffinity
	if poolID == "" {
		poolID = caller.PoolAffinity()
	}
	if poolID == "" {
		poolID = o.conf.DefaultPool
	}
	sessionPool, err := o.pools.Get(ctx, poolID)
	if err != nil {
		return err
	}
	if sessionPool == nil {
		return &core.UnknownResourceError{Resource: core.ResourcePool, ID: poolID}
	}

	// The capacity check is advisory: concurrent callers may each pass it before any
	// pod exists, over-admitting by at most one session per concurrent caller.
	active, err := o.activeSessions(ctx)
	if err != nil {
		return err
	}
	if active >= len(sessionPool.Nodes)*o.conf.MaxSessionsPerNode {
		return &core.ConcurrentSessionsLimitError{Count: active}
	}

	duration := o.conf.DefaultDuration
	if conf.Duration != nil {
		if conf.Duration.Duration >= o.conf.MaxDuration {
			return &core.DurationLimitError{Max: o.conf.MaxDuration}
		}
		duration = conf.Duration.Duration
	}
	duration = min(duration, o.conf.MaxDuration)

	if err := o.materialize(ctx, caller, sessionID, conf.RepositorySource, runtime, poolID, duration); err != nil {
		o.metrics.SessionDeployFailed()
		return err
	}

	o.metrics.SessionDeployed()
	o.log.Info("Deployed session", "session", sessionID, "user", caller.ID, "pool", poolID, "duration", duration)
	return nil
}

// Get returns the session with the given id, or nil when it does not exist. Reading a
// session owned by somebody else requires the Read permission.
func (o *Orchestrator) Get(ctx context.Context, caller *core.User, sessionID string) (*core.Session, error) {
	session, err := o.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if session.UserID != caller.ID {
		if err := o.authorizer.Ensure(ctx, caller, core.ResourceSession, core.PermissionRead); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// List returns all sessions for callers holding the Read permission, and the caller's
// own sessions otherwise.
func (o *Orchestrator) List(ctx context.Context, caller *core.User) ([]core.Session, error) {
	sessions, err := o.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.authorizer.Ensure(ctx, caller, core.ResourceSession, core.PermissionRead); err == nil {
		return sessions, nil
	} else if !core.IsUnauthorized(err) {
		return nil, err
	}

	own := make([]core.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.UserID == caller.ID {
			own = append(own, session)
		}
	}
	return own, nil
}

// Update changes the duration of an existing session by patching the pod annotation.
// No other field may change.
func (o *Orchestrator) Update(ctx context.Context, caller *core.User, sessionID string, conf core.SessionUpdateConfiguration) error {
	session, err := o.session(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return &core.UnknownResourceError{Resource: core.ResourceSession, ID: sessionID}
	}
	if err := o.authorizer.EnsureScoped(ctx, caller, core.ResourceSession, core.PermissionUpdate, session.UserID); err != nil {
		return err
	}

	duration := o.conf.DefaultDuration
	if conf.Duration != nil {
		duration = conf.Duration.Duration
	}
	if duration >= o.conf.MaxDuration {
		return &core.DurationLimitError{Max: o.conf.MaxDuration}
	}
	if duration == session.MaxDuration.Duration {
		return nil
	}

	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Namespace: core.SessionNamespace(sessionID),
		Name:      PodName,
	}}
	return core.Failure(o.client.PatchJSON(ctx, pod, []kubernetes.JSONPatchOperation{{
		Op:    "add",
		Path:  "/metadata/annotations/" + kubernetes.EscapeJSONPointer(core.AnnotationSessionDuration),
		Value: durationAnnotation(duration),
	}}))
}

// Delete tears a session down: the session namespace with grace period zero, then the
// ExternalName service, then the ingress rule. Deleting an absent session is an
// UnknownResource error, but a partially deleted one is torn down to the end.
func (o *Orchestrator) Delete(ctx context.Context, caller *core.User, sessionID string) error {
	session, err := o.session(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return &core.UnknownResourceError{Resource: core.ResourceSession, ID: sessionID}
	}
	if err := o.authorizer.EnsureScoped(ctx, caller, core.ResourceSession, core.PermissionDelete, session.UserID); err != nil {
		return err
	}

	if err := o.undeploy(ctx, sessionID); err != nil {
		return err
	}

	o.metrics.SessionUndeployed()
	o.log.Info("Deleted session", "session", sessionID, "user", caller.ID)
	return nil
}

// Exec runs a command inside the session container and returns its collected stdout.
// The execution permission is required regardless of ownership; executing in somebody
// else's session additionally requires the session Read permission.
func (o *Orchestrator) Exec(ctx context.Context, caller *core.User, sessionID string, conf core.SessionExecutionConfiguration) (*core.SessionExecution, error) {
	session, err := o.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &core.UnknownResourceError{Resource: core.ResourceSession, ID: sessionID}
	}
	if err := o.authorizer.Ensure(ctx, caller, core.ResourceSessionExecution, core.PermissionCreate); err != nil {
		return nil, err
	}
	if session.UserID != caller.ID {
		if err := o.authorizer.Ensure(ctx, caller, core.ResourceSession, core.PermissionRead); err != nil {
			return nil, err
		}
	}

	stdout, err := o.client.PodExecutor().Execute(ctx, core.SessionNamespace(sessionID), PodName, ContainerName, conf.Command...)
	if err != nil {
		return nil, core.Failure(err)
	}

	o.metrics.SessionExecuted()
	return &core.SessionExecution{Stdout: stdout}, nil
}

// Sessions returns every session in the cluster, regardless of owner. Namespaces
// whose pod is missing or in an unknown phase are skipped.
func (o *Orchestrator) Sessions(ctx context.Context) ([]core.Session, error) {
	namespaces := &corev1.NamespaceList{}
	if err := o.client.List(ctx, namespaces, client.MatchingLabels{
		core.LabelNamespaceType: core.NamespaceTypeSession,
	}); err != nil {
		return nil, core.Failure(err)
	}

	sessions := make([]core.Session, 0, len(namespaces.Items))
	for _, namespace := range namespaces.Items {
		sessionID := strings.TrimPrefix(namespace.Name, "session-")
		session, err := o.session(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			o.log.V(1).Info("Skipping session namespace without observable pod", "namespace", namespace.Name)
			continue
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// Routes returns the ingress routes of all Running sessions, keyed by session id.
// The reaper uses it at startup to rebind rules lost while the process was down.
func (o *Orchestrator) Routes(ctx context.Context) (map[string][]core.Port, error) {
	sessions, err := o.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	routes := map[string][]core.Port{}
	for _, session := range sessions {
		if session.State.Type != core.SessionRunning {
			continue
		}
		var ports []core.Port
		if session.State.Runtime != nil {
			ports = session.State.Runtime.Ports
		}
		routes[session.ID] = ports
	}
	return routes, nil
}

// DeleteAsOwner tears a session down on behalf of its owner, bypassing the caller's
// role. The reaper uses it for expired sessions.
func (o *Orchestrator) DeleteAsOwner(ctx context.Context, session *core.Session) error {
	return o.Delete(ctx, &core.User{ID: session.UserID}, session.ID)
}

func (o *Orchestrator) activeSessions(ctx context.Context) (int, error) {
	sessions, err := o.Sessions(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, session := range sessions {
		if session.State.Type == core.SessionRunning || session.State.Type == core.SessionDeploying {
			count++
		}
	}
	return count, nil
}

// materialize runs the six ordered creation steps, compensating in reverse on failure.
func (o *Orchestrator) materialize(
	ctx context.Context,
	caller *core.User,
	sessionID string,
	source core.RepositorySource,
	runtime *core.RepositoryRuntimeConfiguration,
	poolID string,
	duration time.Duration,
) error {
	sessionNamespace := core.SessionNamespace(sessionID)

	// Compensation must run even when the request context is already cancelled.
	rollbackCtx := context.WithoutCancel(ctx)
	var rollback []func()
	fail := func(step string, err error) error {
		for i := len(rollback) - 1; i >= 0; i-- {
			rollback[i]()
		}
		return core.Failure(fmt.Errorf("failed %s for session %q: %w", step, sessionID, err))
	}

	namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
		Name: sessionNamespace,
		Labels: map[string]string{
			core.LabelApp:           core.LabelAppValue,
			core.LabelComponent:     core.ComponentSession,
			core.LabelNamespaceType: core.NamespaceTypeSession,
		},
	}}
	if err := o.client.Create(ctx, namespace); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return &core.SessionIDAlreadyUsedError{}
		}
		return core.Failure(err)
	}
	rollback = append(rollback, func() {
		if err := o.client.Delete(rollbackCtx, namespace, client.GracePeriodSeconds(0)); err != nil && !apierrors.IsNotFound(err) {
			o.log.Error(err, "Failed rolling back session namespace", "session", sessionID)
		}
	})

	volume := workspaceVolume(sessionID, source)
	if err := o.client.Create(ctx, volume); err != nil {
		return fail("creating workspace volume", err)
	}
	rollback = append(rollback, func() {
		if err := o.client.Delete(rollbackCtx, volume); err != nil && !apierrors.IsNotFound(err) {
			o.log.Error(err, "Failed rolling back workspace volume", "session", sessionID)
		}
	})

	pod, err := o.sessionPod(caller, sessionID, source, runtime, poolID, duration)
	if err != nil {
		return fail("building session pod", err)
	}
	if err := o.client.Create(ctx, pod); err != nil {
		return fail("creating session pod", err)
	}
	rollback = append(rollback, func() {
		if err := o.client.Delete(rollbackCtx, pod, client.GracePeriodSeconds(0)); err != nil && !apierrors.IsNotFound(err) {
			o.log.Error(err, "Failed rolling back session pod", "session", sessionID)
		}
	})

	service := sessionService(sessionID, runtime)
	if err := o.client.Create(ctx, service); err != nil {
		return fail("creating session service", err)
	}
	rollback = append(rollback, func() {
		if err := o.client.Delete(rollbackCtx, service); err != nil && !apierrors.IsNotFound(err) {
			o.log.Error(err, "Failed rolling back session service", "session", sessionID)
		}
	})

	external := externalService(o.namespace, sessionID)
	if err := o.client.Create(ctx, external); err != nil {
		return fail("creating external service", err)
	}
	rollback = append(rollback, func() {
		if err := o.client.Delete(rollbackCtx, external); err != nil && !apierrors.IsNotFound(err) {
			o.log.Error(err, "Failed rolling back external service", "session", sessionID)
		}
	})

	if err := o.router.Upsert(ctx, sessionID, runtime.Ports); err != nil {
		return fail("adding ingress rule", err)
	}

	return nil
}

// undeploy removes everything a session materialized, swallowing NotFound so that
// re-deleting a partially deleted session converges. All three steps are attempted
// even when an earlier one fails; failures are aggregated.
func (o *Orchestrator) undeploy(ctx context.Context, sessionID string) error {
	var errs *multierror.Error

	namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: core.SessionNamespace(sessionID)}}
	if err := o.client.Delete(ctx, namespace, client.GracePeriodSeconds(0)); err != nil && !apierrors.IsNotFound(err) {
		errs = multierror.Append(errs, fmt.Errorf("failed deleting session namespace: %w", err))
	}

	external := &corev1.Service{ObjectMeta: metav1.ObjectMeta{
		Namespace: o.namespace,
		Name:      core.ExternalServiceName(sessionID),
	}}
	if err := o.client.Delete(ctx, external); err != nil && !apierrors.IsNotFound(err) {
		errs = multierror.Append(errs, fmt.Errorf("failed deleting external service: %w", err))
	}

	if err := o.router.Remove(ctx, sessionID); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed removing ingress rule: %w", err))
	}

	return core.Failure(errs.ErrorOrNil())
}

// session reads the session pod and derives the logical session from it. Sessions are
// absent when the namespace, the pod or an interpretable pod phase is missing.
func (o *Orchestrator) session(ctx context.Context, sessionID string) (*core.Session, error) {
	pod := &corev1.Pod{}
	found, err := o.client.Get(ctx, core.SessionNamespace(sessionID), PodName, pod)
	if err != nil {
		return nil, core.Failure(err)
	}
	if !found {
		return nil, nil
	}
	return podToSession(pod)
}

func workspaceVolume(sessionID string, source core.RepositorySource) *corev1.PersistentVolumeClaim {
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: core.SessionNamespace(sessionID),
			Name:      VolumeClaimName,
			Labels: map[string]string{
				core.LabelApp:       core.LabelAppValue,
				core.LabelComponent: core.ComponentSession,
				core.LabelOwner:     sessionID,
			},
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: workspaceVolumeSize},
			},
			DataSource: &corev1.TypedLocalObjectReference{
				Kind: "PersistentVolumeClaim",
				Name: core.VolumeTemplateName(source.RepositoryID),
			},
		},
	}
}

func (o *Orchestrator) sessionPod(
	caller *core.User,
	sessionID string,
	source core.RepositorySource,
	runtime *core.RepositoryRuntimeConfiguration,
	poolID string,
	duration time.Duration,
) (*corev1.Pod, error) {
	template, err := yaml.Marshal(runtime)
	if err != nil {
		return nil, core.Failure(err)
	}
	serializedSource, err := json.Marshal(source)
	if err != nil {
		return nil, core.Failure(err)
	}

	image := runtime.BaseImage
	if image == "" {
		image = o.conf.BaseImage
	}

	env := []corev1.EnvVar{
		{Name: "SUBSTRATE_PLAYGROUND", Value: ""},
		{Name: "SUBSTRATE_PLAYGROUND_WORKSPACE", Value: sessionID},
	}
	for _, pair := range runtime.Env {
		env = append(env, corev1.EnvVar{Name: pair.Name, Value: pair.Value})
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: core.SessionNamespace(sessionID),
			Name:      PodName,
			Labels: map[string]string{
				core.LabelApp:       core.LabelAppValue,
				core.LabelComponent: core.ComponentSession,
				core.LabelOwner:     sessionID,
			},
			Annotations: map[string]string{
				core.AnnotationTemplate:         string(template),
				core.AnnotationSessionDuration:  durationAnnotation(duration),
				core.AnnotationUser:             caller.ID,
				core.AnnotationRepositorySource: string(serializedSource),
			},
		},
		Spec: corev1.PodSpec{
			TerminationGracePeriodSeconds: ptr.To[int64](1),
			Affinity: &corev1.Affinity{
				NodeAffinity: &corev1.NodeAffinity{
					PreferredDuringSchedulingIgnoredDuringExecution: []corev1.PreferredSchedulingTerm{{
						Weight: 100,
						Preference: corev1.NodeSelectorTerm{
							MatchExpressions: []corev1.NodeSelectorRequirement{{
								Key:      core.LabelNodePool,
								Operator: corev1.NodeSelectorOpIn,
								Values:   []string{poolID},
							}},
						},
					}},
				},
			},
			Containers: []corev1.Container{{
				Name:  ContainerName,
				Image: image,
				Env:   env,
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory:           resource.MustParse("1Gi"),
						corev1.ResourceCPU:              resource.MustParse("0.5"),
						corev1.ResourceEphemeralStorage: resource.MustParse("25Gi"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceMemory:           resource.MustParse("64Gi"),
						corev1.ResourceCPU:              resource.MustParse("1"),
						corev1.ResourceEphemeralStorage: resource.MustParse("50Gi"),
					},
				},
				VolumeMounts: []corev1.VolumeMount{{
					Name:      VolumeClaimName,
					MountPath: WorkspaceMountPath,
				}},
			}},
			Volumes: []corev1.Volume{{
				Name: VolumeClaimName,
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: VolumeClaimName,
					},
				},
			}},
		},
	}, nil
}

func sessionService(sessionID string, runtime *core.RepositoryRuntimeConfiguration) *corev1.Service {
	ports := []corev1.ServicePort{{
		Name:     "web",
		Protocol: corev1.ProtocolTCP,
		Port:     ingress.WebPort,
	}}
	for _, port := range runtime.Ports {
		servicePort := corev1.ServicePort{
			Name:     port.Name,
			Protocol: corev1.Protocol(port.Protocol),
			Port:     port.Port,
		}
		if servicePort.Protocol == "" {
			servicePort.Protocol = corev1.ProtocolTCP
		}
		if port.Target != 0 {
			servicePort.TargetPort = intstr.FromInt32(port.Target)
		}
		ports = append(ports, servicePort)
	}

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: core.SessionNamespace(sessionID),
			Name:      ServiceName,
			Labels: map[string]string{
				core.LabelApp:       core.LabelAppValue,
				core.LabelComponent: core.ComponentSession,
				core.LabelOwner:     sessionID,
			},
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: map[string]string{core.LabelOwner: sessionID},
			Ports:    ports,
		},
	}
}

func externalService(controlNamespace, sessionID string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: controlNamespace,
			Name:      core.ExternalServiceName(sessionID),
			Labels: map[string]string{
				core.LabelApp:       core.LabelAppValue,
				core.LabelComponent: core.ComponentSession,
				core.LabelOwner:     sessionID,
			},
		},
		Spec: corev1.ServiceSpec{
			Type:         corev1.ServiceTypeExternalName,
			ExternalName: fmt.Sprintf("%s.%s.svc.cluster.local", ServiceName, core.SessionNamespace(sessionID)),
		},
	}
}

// podToSession maps the observed pod onto the session state machine. An unknown pod
// phase means the session is treated as absent.
func podToSession(pod *corev1.Pod) (*core.Session, error) {
	sessionID, ok := pod.Labels[core.LabelOwner]
	if !ok {
		return nil, &core.MissingDataError{Path: "pod.metadata.labels." + core.LabelOwner}
	}
	userID := pod.Annotations[core.AnnotationUser]
	if userID == "" {
		userID = sessionID
	}

	serializedDuration, ok := pod.Annotations[core.AnnotationSessionDuration]
	if !ok {
		return nil, &core.MissingAnnotationError{Annotation: core.AnnotationSessionDuration}
	}
	minutes, err := strconv.ParseInt(serializedDuration, 10, 64)
	if err != nil {
		return nil, core.Failure(err)
	}

	source := core.RepositorySource{}
	if serialized, ok := pod.Annotations[core.AnnotationRepositorySource]; ok {
		if err := json.Unmarshal([]byte(serialized), &source); err != nil {
			return nil, core.Failure(err)
		}
	}

	state, err := podState(pod)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	return &core.Session{
		ID:               sessionID,
		UserID:           userID,
		MaxDuration:      core.MinutesDuration(minutes),
		RepositorySource: source,
		State:            *state,
	}, nil
}

func podState(pod *corev1.Pod) (*core.SessionState, error) {
	switch pod.Status.Phase {
	case corev1.PodPending:
		return &core.SessionState{Type: core.SessionDeploying}, nil

	case corev1.PodRunning:
		state := &core.SessionState{Type: core.SessionRunning}
		if pod.Status.StartTime != nil {
			state.StartTime = &core.UnixTime{Time: pod.Status.StartTime.Time}
		}
		if pod.Spec.NodeName != "" {
			state.Node = &core.Node{Hostname: pod.Spec.NodeName}
		}
		if serialized, ok := pod.Annotations[core.AnnotationTemplate]; ok {
			runtime := &core.RepositoryRuntimeConfiguration{}
			if err := yaml.Unmarshal([]byte(serialized), runtime); err != nil {
				return nil, core.Failure(err)
			}
			state.Runtime = runtime
		}
		return state, nil

	case corev1.PodFailed:
		return &core.SessionState{
			Type:    core.SessionFailed,
			Reason:  pod.Status.Reason,
			Message: pod.Status.Message,
		}, nil

	default:
		return nil, nil
	}
}

func durationAnnotation(duration time.Duration) string {
	return strconv.FormatInt(int64(duration/time.Minute), 10)
}
