// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/client/kubernetes"
)

// configMapStore reads and writes single keys of one control-namespace config map.
// Writes are JSON patches on /data/<key>, so writers of different keys never conflict.
type configMapStore struct {
	client    kubernetes.Interface
	namespace string
	name      string
}

func (s *configMapStore) get(ctx context.Context, key string) (string, bool, error) {
	configMap := &corev1.ConfigMap{}
	found, err := s.client.Get(ctx, s.namespace, s.name, configMap)
	if err != nil {
		return "", false, core.Failure(err)
	}
	if !found {
		return "", false, nil
	}
	value, ok := configMap.Data[key]
	return value, ok, nil
}

func (s *configMapStore) values(ctx context.Context) (map[string]string, error) {
	configMap := &corev1.ConfigMap{}
	found, err := s.client.Get(ctx, s.namespace, s.name, configMap)
	if err != nil {
		return nil, core.Failure(err)
	}
	if !found {
		return map[string]string{}, nil
	}
	return configMap.Data, nil
}

func (s *configMapStore) put(ctx context.Context, key, value string) error {
	configMap := &corev1.ConfigMap{}
	found, err := s.client.Get(ctx, s.namespace, s.name, configMap)
	if err != nil {
		return core.Failure(err)
	}

	if !found {
		configMap = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: s.namespace,
				Name:      s.name,
				Labels:    map[string]string{core.LabelApp: core.LabelAppValue},
			},
			Data: map[string]string{key: value},
		}
		return core.Failure(s.client.Create(ctx, configMap))
	}

	ops := []kubernetes.JSONPatchOperation{{
		Op:    "add",
		Path:  "/data/" + kubernetes.EscapeJSONPointer(key),
		Value: value,
	}}
	if configMap.Data == nil {
		ops = []kubernetes.JSONPatchOperation{{
			Op:    "add",
			Path:  "/data",
			Value: map[string]string{key: value},
		}}
	}
	return core.Failure(s.client.PatchJSON(ctx, configMap, ops))
}

func (s *configMapStore) delete(ctx context.Context, key string) error {
	configMap := &corev1.ConfigMap{}
	found, err := s.client.Get(ctx, s.namespace, s.name, configMap)
	if err != nil {
		return core.Failure(err)
	}
	if !found {
		return nil
	}
	if _, ok := configMap.Data[key]; !ok {
		return nil
	}

	return core.Failure(s.client.PatchJSON(ctx, configMap, []kubernetes.JSONPatchOperation{{
		Op:   "remove",
		Path: "/data/" + kubernetes.EscapeJSONPointer(key),
	}}))
}
