// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package reaper deletes sessions whose wall-clock lifetime exceeded their declared
// maximum. It runs as a single periodic task next to the HTTP boundary.
package reaper

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/substrate/playground/pkg/apis/core"
	"github.com/substrate/playground/pkg/ingress"
	"github.com/substrate/playground/pkg/metrics"
	"github.com/substrate/playground/pkg/session"
)

// DefaultInterval is the fixed sweep interval.
const DefaultInterval = 60 * time.Second

// Reaper periodically sweeps expired sessions.
type Reaper struct {
	orchestrator *session.Orchestrator
	router       *ingress.Router
	metrics      *metrics.Recorder
	log          logr.Logger
	interval     time.Duration
	clock        clock.Clock
}

// New creates a Reaper sweeping at the given interval, or DefaultInterval when zero.
func New(orchestrator *session.Orchestrator, router *ingress.Router, recorder *metrics.Recorder, log logr.Logger, interval time.Duration, clk clock.Clock) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		orchestrator: orchestrator,
		router:       router,
		metrics:      recorder,
		log:          log,
		interval:     interval,
		clock:        clk,
	}
}

// Start rebinds the ingress rules of running sessions once and then sweeps until the
// context is cancelled. The current sweep drains before Start returns.
func (r *Reaper) Start(ctx context.Context) error {
	if err := r.Rebind(ctx); err != nil {
		r.log.Error(err, "Failed rebinding ingress rules at startup")
	}

	wait.Until(func() { r.Sweep(ctx) }, r.interval, ctx.Done())
	return nil
}

// Rebind replaces the session rules of the singleton ingress with one rule per
// running session, restoring rules lost while the process was down.
func (r *Reaper) Rebind(ctx context.Context) error {
	routes, err := r.orchestrator.Routes(ctx)
	if err != nil {
		return err
	}
	return r.router.Sync(ctx, routes)
}

// Sweep deletes every running session whose lifetime exceeded its maximum duration.
// Errors are logged and do not abort the sweep.
func (r *Reaper) Sweep(ctx context.Context) {
	sessions, err := r.orchestrator.Sessions(ctx)
	if err != nil {
		r.log.Error(err, "Failed listing sessions, skipping sweep")
		return
	}

	now := r.clock.Now()
	for _, sess := range sessions {
		if !expired(&sess, now) {
			continue
		}
		if err := r.orchestrator.DeleteAsOwner(ctx, &sess); err != nil {
			r.log.Error(err, "Failed deleting expired session", "session", sess.ID, "user", sess.UserID)
			continue
		}
		r.metrics.SessionReaped()
		r.log.Info("Deleted expired session", "session", sess.ID, "user", sess.UserID, "maxDuration", sess.MaxDuration.Duration)
	}
}

func expired(sess *core.Session, now time.Time) bool {
	if sess.State.Type != core.SessionRunning || sess.State.StartTime == nil {
		return false
	}
	return now.Sub(sess.State.StartTime.Time) > sess.MaxDuration.Duration
}
