// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"maps"
	"sort"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
)

// SessionServiceAccountName is the service account created in every user namespace.
// Session pods of the user run under it.
const SessionServiceAccountName = "session-service-account"

// UserStore persists users as cluster-scoped namespaces. The namespace name is
// user-<id>, the role and preferences live in annotations. Deleting the namespace
// cascades everything scoped to the user.
type UserStore struct {
	client kubernetes.Interface
	log    logr.Logger
}

// NewUserStore creates a UserStore.
func NewUserStore(client kubernetes.Interface, log logr.Logger) *UserStore {
	return &UserStore{client: client, log: log}
}

// Get returns the user with the given id, or nil when it does not exist.
func (s *UserStore) Get(ctx context.Context, id string) (*core.User, error) {
	namespace := &corev1.Namespace{}
	found, err := s.client.Get(ctx, "", core.UserNamespace(id), namespace)
	if err != nil {
		return nil, core.Failure(err)
	}
	if !found {
		return nil, nil
	}
	return namespaceToUser(namespace)
}

// List returns all users sorted by id, skipping and logging malformed namespaces.
func (s *UserStore) List(ctx context.Context) ([]core.User, error) {
	namespaces := &corev1.NamespaceList{}
	if err := s.client.List(ctx, namespaces, client.MatchingLabels{
		core.LabelApp:       core.LabelAppValue,
		core.LabelComponent: core.ComponentUser,
	}); err != nil {
		return nil, core.Failure(err)
	}

	users := make([]core.User, 0, len(namespaces.Items))
	for i := range namespaces.Items {
		user, err := namespaceToUser(&namespaces.Items[i])
		if err != nil {
			s.log.Error(err, "Skipping malformed user namespace", "namespace", namespaces.Items[i].Name)
			continue
		}
		users = append(users, *user)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Create persists a new user and the service account its session pods run under.
func (s *UserStore) Create(ctx context.Context, id string, conf core.UserConfiguration) error {
	namespace, err := userToNamespace(&core.User{ID: id, Role: conf.Role, Preferences: conf.Preferences})
	if err != nil {
		return err
	}
	if err := s.client.Create(ctx, namespace); err != nil {
		return core.Failure(err)
	}

	serviceAccount := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: core.UserNamespace(id),
			Name:      SessionServiceAccountName,
		},
	}
	return core.Failure(s.client.Create(ctx, serviceAccount))
}

// Update patches the role and preferences annotations of an existing user.
func (s *UserStore) Update(ctx context.Context, id string, conf core.UserUpdateConfiguration) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return &core.UnknownResourceError{Resource: core.ResourceUser, ID: id}
	}

	namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: core.UserNamespace(id)}}
	var ops []kubernetes.JSONPatchOperation
	if conf.Role != user.Role {
		ops = append(ops, annotationPatch(core.AnnotationRole, conf.Role))
	}
	if !maps.Equal(conf.Preferences, user.Preferences) {
		preferences, err := json.Marshal(conf.Preferences)
		if err != nil {
			return core.Failure(err)
		}
		ops = append(ops, annotationPatch(core.AnnotationPreferences, string(preferences)))
	}
	if len(ops) == 0 {
		return nil
	}
	return core.Failure(s.client.PatchJSON(ctx, namespace, ops))
}

// Delete removes the user namespace and with it everything the user owns.
// Deleting an absent user is a no-op.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: core.UserNamespace(id)}}
	if err := s.client.Delete(ctx, namespace); err != nil && !apierrors.IsNotFound(err) {
		return core.Failure(err)
	}
	return nil
}

func annotationPatch(annotation, value string) kubernetes.JSONPatchOperation {
	return kubernetes.JSONPatchOperation{
		Op:    "add",
		Path:  "/metadata/annotations/" + kubernetes.EscapeJSONPointer(annotation),
		Value: value,
	}
}

func namespaceToUser(namespace *corev1.Namespace) (*core.User, error) {
	id, ok := namespace.Labels[core.LabelResourceID]
	if !ok {
		return nil, &core.MissingDataError{Path: "metadata.labels." + core.LabelResourceID}
	}
	role, ok := namespace.Annotations[core.AnnotationRole]
	if !ok {
		return nil, &core.MissingAnnotationError{Annotation: core.AnnotationRole}
	}
	serialized, ok := namespace.Annotations[core.AnnotationPreferences]
	if !ok {
		return nil, &core.MissingAnnotationError{Annotation: core.AnnotationPreferences}
	}

	preferences := map[string]string{}
	if err := json.Unmarshal([]byte(serialized), &preferences); err != nil {
		return nil, core.Failure(err)
	}

	return &core.User{ID: id, Role: role, Preferences: preferences}, nil
}

func userToNamespace(user *core.User) (*corev1.Namespace, error) {
	preferences := user.Preferences
	if preferences == nil {
		preferences = map[string]string{}
	}
	serialized, err := json.Marshal(preferences)
	if err != nil {
		return nil, core.Failure(err)
	}

	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: core.UserNamespace(user.ID),
			Labels: map[string]string{
				core.LabelApp:        core.LabelAppValue,
				core.LabelComponent:  core.ComponentUser,
				core.LabelResourceID: user.ID,
			},
			Annotations: map[string]string{
				core.AnnotationRole:        user.Role,
				core.AnnotationPreferences: string(serialized),
			},
		},
	}, nil
}
