// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package repository drives the build pipeline turning a repository reference into a
// ready-to-clone workspace volume template. A builder job clones and builds the
// repository into the template PVC and records the built version and its runtime
// configuration as PVC annotations.
package repository

import (
	"context"
	"sort"

	"github.com/go-logr/logr"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/metrics"
)

// DefaultBuilderImage is the image of the builder container when none is configured.
const DefaultBuilderImage = "paritytech/substrate-playground-backend-api:latest"

// templateVolumeSize is the size of the shared workspace volume template.
var templateVolumeSize = resource.MustParse("5Gi")

// Pipeline creates and observes repository version builds in the control namespace.
type Pipeline struct {
	client       kubernetes.Interface
	namespace    string
	builderImage string
	metrics      *metrics.Recorder
	log          logr.Logger
}

// NewPipeline creates a Pipeline running builder jobs in the given control namespace.
func NewPipeline(client kubernetes.Interface, namespace, builderImage string, recorder *metrics.Recorder, log logr.Logger) *Pipeline {
	if builderImage == "" {
		builderImage = DefaultBuilderImage
	}
	return &Pipeline{
		client:       client,
		namespace:    namespace,
		builderImage: builderImage,
		metrics:      recorder,
		log:          log,
	}
}

// CreateVersion ensures the workspace volume template of the repository exists and
// starts the builder job for the given version. It returns immediately; the state of
// the build is derived from the job and the template on subsequent reads.
func (p *Pipeline) CreateVersion(ctx context.Context, repositoryID, versionID string, conf core.RepositoryVersionConfiguration) error {
	if err := p.ensureVolumeTemplate(ctx, repositoryID); err != nil {
		return err
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: p.namespace,
			Name:      core.BuilderJobName(repositoryID, versionID),
			Labels: map[string]string{
				core.LabelApp:        core.LabelAppValue,
				core.LabelComponent:  core.ComponentWorkspace,
				core.LabelRepository: repositoryID,
			},
			Annotations: map[string]string{
				core.AnnotationVersion: versionID,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            ptr.To[int32](1),
			TTLSecondsAfterFinished: ptr.To[int32](0),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyOnFailure,
					Containers: []corev1.Container{{
						Name:    "builder",
						Image:   p.builderImage,
						Command: []string{"builder"},
						Args:    []string{conf.Reference},
						VolumeMounts: []corev1.VolumeMount{{
							Name:      "workspace-template",
							MountPath: "/",
						}},
					}},
					Volumes: []corev1.Volume{{
						Name: "workspace-template",
						VolumeSource: corev1.VolumeSource{
							PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
								ClaimName: core.VolumeTemplateName(repositoryID),
							},
						},
					}},
				},
			},
		},
	}

	if err := p.client.Create(ctx, job); err != nil {
		return core.Failure(err)
	}

	p.metrics.RepositoryBuildStarted()
	p.log.Info("Started repository version build", "repository", repositoryID, "version", versionID, "reference", conf.Reference)
	return nil
}

// GetVersion returns the version with the given id, or nil when neither a builder job
// nor the volume template knows about it.
func (p *Pipeline) GetVersion(ctx context.Context, repositoryID, versionID string) (*core.RepositoryVersion, error) {
	job := &batchv1.Job{}
	found, err := p.client.Get(ctx, p.namespace, core.BuilderJobName(repositoryID, versionID), job)
	if err != nil {
		return nil, core.Failure(err)
	}
	if found {
		state, err := p.jobToState(ctx, repositoryID, job)
		if err != nil {
			return nil, err
		}
		return &core.RepositoryVersion{ID: versionID, State: *state}, nil
	}

	// Finished builder jobs are garbage-collected immediately, so a built version
	// survives only as annotations on the volume template.
	built, state, err := p.builtVersion(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if built != versionID {
		return nil, nil
	}
	return &core.RepositoryVersion{ID: versionID, State: *state}, nil
}

// ListVersions returns the versions of the repository: all in-flight builds plus the
// built version recorded on the volume template, sorted by id.
func (p *Pipeline) ListVersions(ctx context.Context, repositoryID string) ([]core.RepositoryVersion, error) {
	jobs := &batchv1.JobList{}
	if err := p.client.List(ctx, jobs,
		client.InNamespace(p.namespace),
		client.MatchingLabels{core.LabelRepository: repositoryID},
	); err != nil {
		return nil, core.Failure(err)
	}

	versions := make([]core.RepositoryVersion, 0, len(jobs.Items)+1)
	seen := map[string]bool{}
	for i := range jobs.Items {
		job := &jobs.Items[i]
		versionID, ok := job.Annotations[core.AnnotationVersion]
		if !ok {
			p.log.Info("Skipping builder job without version annotation", "job", job.Name)
			continue
		}
		state, err := p.jobToState(ctx, repositoryID, job)
		if err != nil {
			return nil, err
		}
		versions = append(versions, core.RepositoryVersion{ID: versionID, State: *state})
		seen[versionID] = true
	}

	built, state, err := p.builtVersion(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if built != "" && !seen[built] {
		versions = append(versions, core.RepositoryVersion{ID: built, State: *state})
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].ID < versions[j].ID })
	return versions, nil
}

// DeleteVersion removes the builder job of the version, if any, together with its
// pods. Deleting an absent version is a no-op.
func (p *Pipeline) DeleteVersion(ctx context.Context, repositoryID, versionID string) error {
	job := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{
		Namespace: p.namespace,
		Name:      core.BuilderJobName(repositoryID, versionID),
	}}
	if err := p.client.Delete(ctx, job, client.PropagationPolicy(metav1.DeletePropagationBackground)); err != nil && !apierrors.IsNotFound(err) {
		return core.Failure(err)
	}
	return nil
}

// Runtime returns the runtime configuration of a Ready version, failing with
// RepositoryVersionNotReady when the version is absent or not built yet.
func (p *Pipeline) Runtime(ctx context.Context, source core.RepositorySource) (*core.RepositoryRuntimeConfiguration, error) {
	version, err := p.GetVersion(ctx, source.RepositoryID, source.RepositoryVersionID)
	if err != nil {
		return nil, err
	}
	if version == nil || version.State.Type != core.RepositoryVersionReady {
		return nil, &core.RepositoryVersionNotReadyError{}
	}
	return version.State.Runtime, nil
}

// ensureVolumeTemplate idempotently creates the shared workspace volume template.
func (p *Pipeline) ensureVolumeTemplate(ctx context.Context, repositoryID string) error {
	existing := &corev1.PersistentVolumeClaim{}
	found, err := p.client.Get(ctx, p.namespace, core.VolumeTemplateName(repositoryID), existing)
	if err != nil {
		return core.Failure(err)
	}
	if found {
		return nil
	}

	template := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: p.namespace,
			Name:      core.VolumeTemplateName(repositoryID),
			Labels: map[string]string{
				core.LabelApp:        core.LabelAppValue,
				core.LabelComponent:  core.ComponentWorkspace,
				core.LabelRepository: repositoryID,
			},
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: templateVolumeSize},
			},
		},
	}
	if err := p.client.Create(ctx, template); err != nil && !apierrors.IsAlreadyExists(err) {
		return core.Failure(err)
	}
	return nil
}

// builtVersion reads the built version id and runtime recorded on the volume template.
// It returns an empty id when nothing has been built yet.
func (p *Pipeline) builtVersion(ctx context.Context, repositoryID string) (string, *core.RepositoryVersionState, error) {
	template := &corev1.PersistentVolumeClaim{}
	found, err := p.client.Get(ctx, p.namespace, core.VolumeTemplateName(repositoryID), template)
	if err != nil {
		return "", nil, core.Failure(err)
	}
	if !found {
		return "", nil, nil
	}

	versionID, ok := template.Annotations[core.AnnotationVersion]
	if !ok {
		return "", nil, nil
	}

	state := &core.RepositoryVersionState{Type: core.RepositoryVersionReady}
	if serialized, ok := template.Annotations[core.AnnotationRuntime]; ok {
		runtime := &core.RepositoryRuntimeConfiguration{}
		if err := yaml.Unmarshal([]byte(serialized), runtime); err != nil {
			return "", nil, core.Failure(err)
		}
		state.Runtime = runtime
	}
	return versionID, state, nil
}

// jobToState maps the observed builder job onto the version state machine.
func (p *Pipeline) jobToState(ctx context.Context, repositoryID string, job *batchv1.Job) (*core.RepositoryVersionState, error) {
	switch {
	case job.Status.Succeeded > 0:
		_, state, err := p.builtVersion(ctx, repositoryID)
		if err != nil {
			return nil, err
		}
		if state == nil {
			state = &core.RepositoryVersionState{Type: core.RepositoryVersionReady}
		}
		return state, nil

	case jobFailed(job):
		return &core.RepositoryVersionState{
			Type:    core.RepositoryVersionFailed,
			Message: failureMessage(job),
		}, nil

	default:
		state := &core.RepositoryVersionState{Type: core.RepositoryVersionCloning}
		if progress, ok := parseProgress(job.Annotations[core.AnnotationProgress]); ok {
			state.Type = core.RepositoryVersionBuilding
			state.Progress = progress
		}
		return state, nil
	}
}

func jobFailed(job *batchv1.Job) bool {
	for _, condition := range job.Status.Conditions {
		if condition.Type == batchv1.JobFailed && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func failureMessage(job *batchv1.Job) string {
	for _, condition := range job.Status.Conditions {
		if condition.Type == batchv1.JobFailed && condition.Status == corev1.ConditionTrue {
			if condition.Message != "" {
				return condition.Message
			}
			return condition.Reason
		}
	}
	return ""
}

func parseProgress(value string) (int32, bool) {
	if value == "" {
		return 0, false
	}
	var progress int32
	for i := range len(value) {
		c := value[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		progress = progress*10 + int32(c-'0')
	}
	return progress, true
}
