// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/substrate/playground/pkg/apis/core"
)

func decode(r *http.Request, into any) error {
	return json.NewDecoder(r.Body).Decode(into)
}

func (s *Server) getPlayground(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.log, core.Playground{
		Configuration: s.conf.Playground(),
		User:          caller(r),
	})
}

// Users

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceUser, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.authorizer.EnsureScoped(r.Context(), caller(r), core.ResourceUser, core.PermissionRead, id); err != nil {
		writeError(w, s.log, err)
		return
	}
	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if user == nil {
		writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourceUser, ID: id})
		return
	}
	writeResult(w, s.log, user)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceUser, core.PermissionCreate); err != nil {
		writeError(w, s.log, err)
		return
	}
	conf := core.UserConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.users.Create(r.Context(), chi.URLParam(r, "id"), conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.authorizer.EnsureScoped(r.Context(), caller(r), core.ResourceUser, core.PermissionUpdate, id); err != nil {
		writeError(w, s.log, err)
		return
	}
	conf := core.UserUpdateConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.users.Update(r.Context(), id, conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

// deleteUser removes the user, its namespace and every session it owns, including
// their ingress rules.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.authorizer.EnsureScoped(r.Context(), caller(r), core.ResourceUser, core.PermissionDelete, id); err != nil {
		writeError(w, s.log, err)
		return
	}
	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if user == nil {
		writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourceUser, ID: id})
		return
	}

	sessions, err := s.orchestrator.Sessions(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	for _, sess := range sessions {
		if sess.UserID != id {
			continue
		}
		if err := s.orchestrator.DeleteAsOwner(r.Context(), &sess); err != nil {
			writeError(w, s.log, err)
			return
		}
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

// Roles

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRole, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	roles, err := s.roles.List(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, roles)
}

func (s *Server) getRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRole, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	role, err := s.roles.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if role == nil {
		writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourceRole, ID: id})
		return
	}
	writeResult(w, s.log, role)
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRole, core.PermissionCreate); err != nil {
		writeError(w, s.log, err)
		return
	}
	conf := core.RoleConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.roles.Create(r.Context(), chi.URLParam(r, "id"), conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRole, core.PermissionUpdate); err != nil {
		writeError(w, s.log, err)
		return
	}
	conf := core.RoleUpdateConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.roles.Update(r.Context(), chi.URLParam(r, "id"), conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRole, core.PermissionDelete); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.roles.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

// Repositories

func (s *Server) listRepositories(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepository, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	repositories, err := s.repositories.List(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, repositories)
}

func (s *Server) getRepository(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepository, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	repo, err := s.repositories.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if repo == nil {
		writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourceRepository, ID: id})
		return
	}
	writeResult(w, s.log, repo)
}

func (s *Server) createRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepository, core.PermissionCreate); err != nil {
		writeError(w, s.log, err)
		return
	}
	conf := core.RepositoryConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.repositories.Create(r.Context(), chi.URLParam(r, "id"), conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) updateRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepository, core.PermissionUpdate); err != nil {
		writeError(w, s.log, err)
		return
	}
	conf := core.RepositoryUpdateConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.repositories.Update(r.Context(), chi.URLParam(r, "id"), conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) deleteRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepository, core.PermissionDelete); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.repositories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

// Repository versions

func (s *Server) listRepositoryVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepositoryVersion, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.ensureRepository(w, r, id); err != nil {
		return
	}
	versions, err := s.pipeline.ListVersions(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, versions)
}

func (s *Server) getRepositoryVersion(w http.ResponseWriter, r *http.Request) {
	id, versionID := chi.URLParam(r, "id"), chi.URLParam(r, "version")
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepositoryVersion, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	version, err := s.pipeline.GetVersion(r.Context(), id, versionID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if version == nil {
		writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourceRepositoryVersion, ID: versionID})
		return
	}
	writeResult(w, s.log, version)
}

func (s *Server) createRepositoryVersion(w http.ResponseWriter, r *http.Request) {
	id, versionID := chi.URLParam(r, "id"), chi.URLParam(r, "version")
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepositoryVersion, core.PermissionCreate); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.ensureRepository(w, r, id); err != nil {
		return
	}
	conf := core.RepositoryVersionConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.pipeline.CreateVersion(r.Context(), id, versionID, conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) deleteRepositoryVersion(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourceRepositoryVersion, core.PermissionDelete); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.pipeline.DeleteVersion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "version")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

// ensureRepository writes an UnknownResource error when the repository is absent.
func (s *Server) ensureRepository(w http.ResponseWriter, r *http.Request, id string) error {
	repo, err := s.repositories.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return err
	}
	if repo == nil {
		err := &core.UnknownResourceError{Resource: core.ResourceRepository, ID: id}
		writeError(w, s.log, err)
		return err
	}
	return nil
}

// Pools

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourcePool, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	pools, err := s.pools.List(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, pools)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.authorizer.Ensure(r.Context(), caller(r), core.ResourcePool, core.PermissionRead); err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.pools.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if p == nil {
		writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourcePool, ID: id})
		return
	}
	writeResult(w, s.log, p)
}

// Sessions

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.orchestrator.List(r.Context(), caller(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.orchestrator.Get(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if sess == nil {
		writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourceSession, ID: id})
		return
	}
	writeResult(w, s.log, sess)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	conf := core.SessionConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.orchestrator.Create(r.Context(), caller(r), chi.URLParam(r, "id"), conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	conf := core.SessionUpdateConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	if err := s.orchestrator.Update(r.Context(), caller(r), chi.URLParam(r, "id"), conf); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.Delete(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, nil)
}

func (s *Server) createSessionExecution(w http.ResponseWriter, r *http.Request) {
	conf := core.SessionExecutionConfiguration{}
	if err := decode(r, &conf); err != nil {
		writeBadRequest(w, s.log, err)
		return
	}
	execution, err := s.orchestrator.Exec(r.Context(), caller(r), chi.URLParam(r, "id"), conf)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, s.log, execution)
}
