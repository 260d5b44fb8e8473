// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "playground"

// Recorder counts the lifecycle events of the control plane.
type Recorder struct {
	sessionsDeployed        prometheus.Counter
	sessionsUndeployed      prometheus.Counter
	sessionDeployFailures   prometheus.Counter
	sessionReaped           prometheus.Counter
	sessionExecutions       prometheus.Counter
	repositoryBuildsStarted prometheus.Counter
}

// NewRecorder creates a Recorder and registers its collectors with the given registerer.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	r := &Recorder{
		sessionsDeployed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_deployed_total",
			Help:      "Total number of sessions successfully deployed.",
		}),
		sessionsUndeployed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_undeployed_total",
			Help:      "Total number of sessions deleted.",
		}),
		sessionDeployFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_deploy_failures_total",
			Help:      "Total number of session deployments that failed and were rolled back.",
		}),
		sessionReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Total number of sessions deleted by the reaper after exceeding their duration.",
		}),
		sessionExecutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_executions_total",
			Help:      "Total number of commands executed inside sessions.",
		}),
		repositoryBuildsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_builds_started_total",
			Help:      "Total number of repository version builds started.",
		}),
	}

	registerer.MustRegister(
		r.sessionsDeployed,
		r.sessionsUndeployed,
		r.sessionDeployFailures,
		r.sessionReaped,
		r.sessionExecutions,
		r.repositoryBuildsStarted,
	)

	return r
}

// NewNopRecorder creates a Recorder whose collectors are not registered anywhere.
func NewNopRecorder() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}

// SessionDeployed counts a successful session deployment.
func (r *Recorder) SessionDeployed() { r.sessionsDeployed.Inc() }

// SessionUndeployed counts a session deletion.
func (r *Recorder) SessionUndeployed() { r.sessionsUndeployed.Inc() }

// SessionDeployFailed counts a failed, rolled-back session deployment.
func (r *Recorder) SessionDeployFailed() { r.sessionDeployFailures.Inc() }

// SessionReaped counts a session deleted by the reaper.
func (r *Recorder) SessionReaped() { r.sessionReaped.Inc() }

// SessionExecuted counts a command execution inside a session.
func (r *Recorder) SessionExecuted() { r.sessionExecutions.Inc() }

// RepositoryBuildStarted counts a started repository version build.
func (r *Recorder) RepositoryBuildStarted() { r.repositoryBuildsStarted.Inc() }
