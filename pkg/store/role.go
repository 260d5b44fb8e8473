// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sort"

	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
)

// RoleStore persists roles as YAML values of the playground-roles config map,
// keyed by role id.
type RoleStore struct {
	store configMapStore
	log   logr.Logger
}

// NewRoleStore creates a RoleStore operating on the given control namespace.
func NewRoleStore(client kubernetes.Interface, namespace string, log logr.Logger) *RoleStore {
	return &RoleStore{
		store: configMapStore{client: client, namespace: namespace, name: core.ConfigMapRoles},
		log:   log,
	}
}

// Get returns the role with the given id, or nil when it does not exist.
func (s *RoleStore) Get(ctx context.Context, id string) (*core.Role, error) {
	value, ok, err := s.store.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	role := &core.Role{}
	if err := yaml.Unmarshal([]byte(value), role); err != nil {
		return nil, core.Failure(err)
	}
	return role, nil
}

// List returns all roles sorted by id. Entries that fail to deserialize are
// skipped and logged rather than failing the whole list.
func (s *RoleStore) List(ctx context.Context) ([]core.Role, error) {
	values, err := s.store.values(ctx)
	if err != nil {
		return nil, err
	}

	roles := make([]core.Role, 0, len(values))
	for id, value := range values {
		role := core.Role{}
		if err := yaml.Unmarshal([]byte(value), &role); err != nil {
			s.log.Error(err, "Skipping undeserializable role", "role", id)
			continue
		}
		roles = append(roles, role)
	}

	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

// Create persists a new role under the given id.
func (s *RoleStore) Create(ctx context.Context, id string, conf core.RoleConfiguration) error {
	return s.put(ctx, core.Role{ID: id, Permissions: conf.Permissions})
}

// Update replaces the permissions of an existing role.
func (s *RoleStore) Update(ctx context.Context, id string, conf core.RoleUpdateConfiguration) error {
	role, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return &core.UnknownResourceError{Resource: core.ResourceRole, ID: id}
	}

	role.Permissions = conf.Permissions
	return s.put(ctx, *role)
}

// Delete removes the role with the given id. Deleting an absent role is a no-op.
func (s *RoleStore) Delete(ctx context.Context, id string) error {
	return s.store.delete(ctx, id)
}

func (s *RoleStore) put(ctx context.Context, role core.Role) error {
	value, err := yaml.Marshal(role)
	if err != nil {
		return core.Failure(err)
	}
	return s.store.put(ctx, role.ID, string(value))
}
