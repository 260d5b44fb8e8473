// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/component-base/version"
	"k8s.io/component-base/version/verflag"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/substrate/playground/pkg/authorization"
	"github.com/substrate/playground/pkg/client/kubernetes"
	"github.com/substrate/playground/pkg/config"
	"github.com/substrate/playground/pkg/ingress"
	"github.com/substrate/playground/pkg/logger"
	"github.com/substrate/playground/pkg/metrics"
	"github.com/substrate/playground/pkg/pool"
	"github.com/substrate/playground/pkg/reaper"
	"github.com/substrate/playground/pkg/repository"
	"github.com/substrate/playground/pkg/server"
	"github.com/substrate/playground/pkg/session"
	"github.com/substrate/playground/pkg/store"
)

// Name is a const for the name of this component.
const Name = "playground"

type options struct {
	kubeconfig    string
	namespace     string
	host          string
	listenAddress string
	builderImage  string
	reapInterval  time.Duration
	logLevel      string
	logFormat     string
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.kubeconfig, "kubeconfig", "", "Path to a kubeconfig. The in-cluster configuration is used when empty.")
	fs.StringVar(&o.namespace, "namespace", "", "Control namespace hosting the singleton ingress, the config maps and the per-session services. Defaults to the POD_NAMESPACE environment variable.")
	fs.StringVar(&o.host, "host", "", "Base domain under which session subdomains are allocated.")
	fs.StringVar(&o.listenAddress, "listen-address", ":8080", "Address the HTTP server listens on.")
	fs.StringVar(&o.builderImage, "builder-image", repository.DefaultBuilderImage, "Image of the repository builder jobs.")
	fs.DurationVar(&o.reapInterval, "reap-interval", reaper.DefaultInterval, "Interval between two reaper sweeps.")
	fs.StringVar(&o.logLevel, "log-level", logger.InfoLevel, fmt.Sprintf("Log level, one of %v.", logger.AllLogLevels))
	fs.StringVar(&o.logFormat, "log-format", logger.FormatJSON, fmt.Sprintf("Log format, one of %v.", logger.AllLogFormats))
}

func (o *options) complete() error {
	if o.namespace == "" {
		o.namespace = os.Getenv("POD_NAMESPACE")
	}
	return nil
}

func (o *options) validate() error {
	if o.namespace == "" {
		return fmt.Errorf("--namespace or POD_NAMESPACE is required")
	}
	if o.host == "" {
		return fmt.Errorf("--host is required")
	}
	return nil
}

// NewCommand creates a new cobra.Command for running the playground control plane.
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   Name,
		Short: "Launch the " + Name + " control plane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verflag.PrintAndExitIfRequested()

			if err := opts.complete(); err != nil {
				return err
			}
			if err := opts.validate(); err != nil {
				return err
			}

			log, err := logger.NewZapLogger(opts.logLevel, opts.logFormat)
			if err != nil {
				return fmt.Errorf("error instantiating zap logger: %w", err)
			}

			logf.SetLogger(log)
			klog.SetLogger(log)

			log.Info("Starting "+Name, "version", version.Get())
			cmd.Flags().VisitAll(func(flag *pflag.Flag) {
				log.Info(fmt.Sprintf("FLAG: --%s=%s", flag.Name, flag.Value))
			})

			return run(cmd.Context(), log, opts)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	verflag.AddFlags(flags)
	opts.addFlags(flags)

	return cmd
}

func run(ctx context.Context, log logr.Logger, opts *options) error {
	conf, err := config.FromEnvironment()
	if err != nil {
		return err
	}

	client, err := kubernetes.NewFromKubeconfig(opts.kubeconfig)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	users := store.NewUserStore(client, log.WithName("store"))
	roles := store.NewRoleStore(client, opts.namespace, log.WithName("store"))
	repositories := store.NewRepositoryStore(client, opts.namespace, log.WithName("store"))
	authorizer := authorization.New(roles)
	pools := pool.NewLister(client)
	router := ingress.NewRouter(client, opts.namespace, opts.host)
	pipeline := repository.NewPipeline(client, opts.namespace, opts.builderImage, recorder, log.WithName("pipeline"))
	orchestrator := session.NewOrchestrator(client, authorizer, pipeline, pools, router, conf, opts.namespace, recorder, log.WithName("orchestrator"))

	sessionReaper := reaper.New(orchestrator, router, recorder, log.WithName("reaper"), opts.reapInterval, clock.RealClock{})
	go func() {
		if err := sessionReaper.Start(ctx); err != nil {
			log.Error(err, "Reaper stopped")
		}
	}()

	srv := server.New(conf, users, roles, repositories, authorizer, pipeline, pools, orchestrator, server.NewGithubAuthenticator(), registry, log.WithName("server"))
	httpServer := &http.Server{
		Addr:              opts.listenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "Failed shutting down HTTP server")
		}
	}()

	log.Info("Listening", "address", opts.listenAddress)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
