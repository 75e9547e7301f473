// Command geolb runs the locality-aware client registry behind an HTTP front
// door, optionally mirroring clients announced in etcd.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geo-lb/config"
	"geo-lb/loadbalance"
	"geo-lb/logging"
	"geo-lb/metrics"
	"geo-lb/middleware"
	"geo-lb/registry"
	"geo-lb/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "geolb",
		Short:        "Locality-aware client registry and selector",
		SilenceUsage: true,
		RunE:         runServe,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front door (default)",
		RunE:  runServe,
	})
	root.AddCommand(newAnnounceCommand())
	return root
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(
		logging.WithLogLevel(cfg.LogLevel),
		logging.WithLogFormat(cfg.LogFormat),
	)
}

// runServe wires config → logger → metrics → balancer → etcd mirror → server
// and blocks until SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var src loadbalance.Source
	if cfg.Seed != 0 {
		src = loadbalance.NewSeededSource(cfg.Seed)
	}
	bal, err := loadbalance.NewBalancer(cfg.Strategy, src)
	if err != nil {
		return err
	}
	lb := loadbalance.NewLocalityBalancer(
		loadbalance.WithBalancer(bal),
		loadbalance.WithLogger(log),
		loadbalance.WithMetrics(metrics.New(promReg)),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.EtcdEndpoints) > 0 {
		etcd, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, cfg.EtcdPrefix)
		if err != nil {
			return err
		}
		defer etcd.Close()
		go registry.Mirror(ctx, etcd.Watch(ctx), lb, log)
		log.Info("mirroring etcd announcements",
			zap.Strings("endpoints", cfg.EtcdEndpoints),
			zap.String("prefix", cfg.EtcdPrefix),
		)
	}

	srv := server.NewServer(lb,
		server.WithLogger(log),
		server.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
	)
	srv.Use(middleware.RecoverMiddleware(log))
	srv.Use(middleware.LoggingMiddleware(log))
	if cfg.RateLimit > 0 {
		srv.Use(middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}
	srv.Use(middleware.TimeOutMiddleware(cfg.RequestTimeout))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve("tcp", cfg.Addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
