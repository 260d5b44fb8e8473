// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"context"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/store"
)

// Authorizer evaluates (caller, resource, permission) tuples against the caller's role.
type Authorizer struct {
	roles *store.RoleStore
}

// New creates an Authorizer resolving roles through the given store.
func New(roles *store.RoleStore) *Authorizer {
	return &Authorizer{roles: roles}
}

// Ensure returns nil when the caller's role carries the exact (resource, permission)
// tuple, and UnauthorizedError otherwise. A missing role denies.
func (a *Authorizer) Ensure(ctx context.Context, caller *core.User, resource core.ResourceType, permission core.Permission) error {
	role, err := a.roles.Get(ctx, caller.Role)
	if err != nil {
		return err
	}
	if role == nil || !role.Allows(resource, permission) {
		return &core.UnauthorizedError{Resource: resource, Permission: permission}
	}
	return nil
}

// EnsureScoped is Ensure with the self-service carve-out: for User and Session
// resources targeted at the caller's own id, Read, Update and Delete succeed
// without consulting the role.
func (a *Authorizer) EnsureScoped(ctx context.Context, caller *core.User, resource core.ResourceType, permission core.Permission, targetID string) error {
	if selfService(resource, permission) && targetID == caller.ID {
		return nil
	}
	return a.Ensure(ctx, caller, resource, permission)
}

func selfService(resource core.ResourceType, permission core.Permission) bool {
	if resource != core.ResourceUser && resource != core.ResourceSession {
		return false
	}
	switch permission.Type {
	case core.PermissionTypeRead, core.PermissionTypeUpdate, core.PermissionTypeDelete:
		return true
	default:
		return false
	}
}
