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

// RepositoryStore persists repositories as YAML values of the playground-repositories
// config map, keyed by repository id.
type RepositoryStore struct {
	store configMapStore
	log   logr.Logger
}

// NewRepositoryStore creates a RepositoryStore operating on the given control namespace.
func NewRepositoryStore(client kubernetes.Interface, namespace string, log logr.Logger) *RepositoryStore {
	return &RepositoryStore{
		store: configMapStore{client: client, namespace: namespace, name: core.ConfigMapRepositories},
		log:   log,
	}
}

// Get returns the repository with the given id, or nil when it does not exist.
func (s *RepositoryStore) Get(ctx context.Context, id string) (*core.Repository, error) {
	value, ok, err := s.store.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	repository := &core.Repository{}
	if err := yaml.Unmarshal([]byte(value), repository); err != nil {
		return nil, core.Failure(err)
	}
	return repository, nil
}

// List returns all repositories sorted by id, skipping and logging undeserializable entries.
func (s *RepositoryStore) List(ctx context.Context) ([]core.Repository, error) {
	values, err := s.store.values(ctx)
	if err != nil {
		return nil, err
	}

	repositories := make([]core.Repository, 0, len(values))
	for id, value := range values {
		repository := core.Repository{}
		if err := yaml.Unmarshal([]byte(value), &repository); err != nil {
			s.log.Error(err, "Skipping undeserializable repository", "repository", id)
			continue
		}
		repositories = append(repositories, repository)
	}

	sort.Slice(repositories, func(i, j int) bool { return repositories[i].ID < repositories[j].ID })
	return repositories, nil
}

// Create persists a new repository under the given id.
func (s *RepositoryStore) Create(ctx context.Context, id string, conf core.RepositoryConfiguration) error {
	return s.put(ctx, core.Repository{ID: id, URL: conf.URL})
}

// Update replaces the URL of an existing repository.
func (s *RepositoryStore) Update(ctx context.Context, id string, conf core.RepositoryUpdateConfiguration) error {
	repository, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if repository == nil {
		return &core.UnknownResourceError{Resource: core.ResourceRepository, ID: id}
	}

	repository.URL = conf.URL
	return s.put(ctx, *repository)
}

// Delete removes the repository with the given id. Deleting an absent repository is a no-op.
func (s *RepositoryStore) Delete(ctx context.Context, id string) error {
	return s.store.delete(ctx, id)
}

func (s *RepositoryStore) put(ctx context.Context, repository core.Repository) error {
	value, err := yaml.Marshal(repository)
	if err != nil {
		return core.Failure(err)
	}
	return s.store.put(ctx, repository.ID, string(value))
}
