// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package server is the HTTP boundary of the playground control plane. It
// authenticates callers, decodes request bodies and delegates to the session
// orchestrator, the repository pipeline and the resource stores.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/authorization"
	"github.com/substrate/playground/pkg/config"
	"github.com/substrate/playground/pkg/pool"
	"github.com/substrate/playground/pkg/repository"
	"github.com/substrate/playground/pkg/session"
	"github.com/substrate/playground/pkg/store"
)

// tokenCookie is the cookie carrying the caller's access token. A bearer token in the
// Authorization header takes precedence.
const tokenCookie = "token"

// Server serves the REST surface of the control plane.
type Server struct {
	conf          *config.Configuration
	users         *store.UserStore
	roles         *store.RoleStore
	repositories  *store.RepositoryStore
	authorizer    *authorization.Authorizer
	pipeline      *repository.Pipeline
	pools         *pool.Lister
	orchestrator  *session.Orchestrator
	authenticator Authenticator
	gatherer      prometheus.Gatherer
	log           logr.Logger
}

// New creates a Server.
func New(
	conf *config.Configuration,
	users *store.UserStore,
	roles *store.RoleStore,
	repositories *store.RepositoryStore,
	authorizer *authorization.Authorizer,
	pipeline *repository.Pipeline,
	pools *pool.Lister,
	orchestrator *session.Orchestrator,
	authenticator Authenticator,
	gatherer prometheus.Gatherer,
	log logr.Logger,
) *Server {
	return &Server{
		conf:          conf,
		users:         users,
		roles:         roles,
		repositories:  repositories,
		authorizer:    authorizer,
		pipeline:      pipeline,
		pools:         pools,
		orchestrator:  orchestrator,
		authenticator: authenticator,
		gatherer:      gatherer,
		log:           log,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	router.Use(s.resolveCaller)

	router.Get("/", s.getPlayground)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	router.Group(func(router chi.Router) {
		router.Use(s.requireCaller)

		router.Get("/users", s.listUsers)
		router.Get("/users/{id}", s.getUser)
		router.Put("/users/{id}", s.createUser)
		router.Patch("/users/{id}", s.updateUser)
		router.Delete("/users/{id}", s.deleteUser)

		router.Get("/roles", s.listRoles)
		router.Get("/roles/{id}", s.getRole)
		router.Put("/roles/{id}", s.createRole)
		router.Patch("/roles/{id}", s.updateRole)
		router.Delete("/roles/{id}", s.deleteRole)

		router.Get("/repositories", s.listRepositories)
		router.Get("/repositories/{id}", s.getRepository)
		router.Put("/repositories/{id}", s.createRepository)
		router.Patch("/repositories/{id}", s.updateRepository)
		router.Delete("/repositories/{id}", s.deleteRepository)

		router.Get("/repositories/{id}/versions", s.listRepositoryVersions)
		router.Get("/repositories/{id}/versions/{version}", s.getRepositoryVersion)
		router.Put("/repositories/{id}/versions/{version}", s.createRepositoryVersion)
		router.Delete("/repositories/{id}/versions/{version}", s.deleteRepositoryVersion)

		router.Get("/pools", s.listPools)
		router.Get("/pools/{id}", s.getPool)

		router.Get("/sessions", s.listSessions)
		router.Get("/sessions/{id}", s.getSession)
		router.Put("/sessions/{id}", s.createSession)
		router.Patch("/sessions/{id}", s.updateSession)
		router.Delete("/sessions/{id}", s.deleteSession)
		router.Put("/sessions/{id}/execution", s.createSessionExecution)
	})

	return router
}

type contextKey struct{}

var callerKey = contextKey{}

// resolveCaller authenticates the request when it carries a token and stores the
// resolved user in the request context. Requests without a token pass through
// anonymously.
func (s *Server) resolveCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		login, err := s.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		user, err := s.users.Get(r.Context(), login)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		if user == nil {
			writeError(w, s.log, &core.UnknownResourceError{Resource: core.ResourceUser, ID: login})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, user)))
	})
}

// requireCaller rejects anonymous requests.
func (s *Server) requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller(r) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"type":"Unauthorized","message":"authentication required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func caller(r *http.Request) *core.User {
	user, _ := r.Context().Value(callerKey).(*core.User)
	return user
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
