// Command loadbalancer is the FlipHash load balancer entry point.
//
// Usage:
//
//	loadbalancer [-config path/to/loadbalancer.yaml]
//
// The load balancer supports hot-reload: edit loadbalancer.yaml while the
// process is running and the dial timeout and pipe buffer size take effect
// for every client session accepted afterwards — no restart needed. The
// health-check settings, the admin surface settings, and the client,
// registration, and metrics listen addresses are read only at startup.
// Shutdown: send SIGINT or SIGTERM and the process stops the health
// monitor, stops accepting new connections on the three listeners, gives
// the admin server up to 10 seconds to shut down, then exits; in-flight
// client sessions are not waited for.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fliphashlb/internal/admin"
	"fliphashlb/internal/config"
	"fliphashlb/internal/dispatcher"
	"fliphashlb/internal/health"
	"fliphashlb/internal/metricsintake"
	"fliphashlb/internal/pool"
	"fliphashlb/internal/registration"
)

// Version information — set at build time via -ldflags.
//
//	-X main.version=$(git describe --tags --always)
//	-X main.commit=$(git rev-parse --short HEAD)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/loadbalancer.yaml", "path to loadbalancer.yaml")
	flag.Parse()

	startTime := time.Now()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	cfg, v, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("could not load config file, using defaults", "path", *configPath, "error", err)
		cfg = config.Default()
		v = nil
	}

	backends := pool.New()

	d := dispatcher.New(backends, dispatcher.Config{
		DialTimeout: cfg.ParsedDialTimeout(),
		PipeBuffer:  cfg.PipeBuffer,
	})

	clientSrv, err := dispatcher.Listen(cfg.ClientAddr, d)
	if err != nil {
		slog.Error("failed to bind client listener", "addr", cfg.ClientAddr, "error", err)
		os.Exit(1)
	}
	regSrv, err := registration.Listen(cfg.RegistrationAddr, backends)
	if err != nil {
		slog.Error("failed to bind registration listener", "addr", cfg.RegistrationAddr, "error", err)
		os.Exit(1)
	}
	metricsSrv, err := metricsintake.Listen(cfg.MetricsAddr, backends)
	if err != nil {
		slog.Error("failed to bind metrics listener", "addr", cfg.MetricsAddr, "error", err)
		os.Exit(1)
	}

	go clientSrv.Serve()
	go regSrv.Serve()
	go metricsSrv.Serve()

	monitor := health.New(backends, health.Config{
		Interval:     cfg.HealthCheck.ParsedInterval(),
		Timeout:      cfg.HealthCheck.ParsedTimeout(),
		ProbeMessage: cfg.HealthCheck.ProbeMessage,
	})
	if cfg.HealthCheck.Enabled {
		monitor.Start()
	}

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		adminSrv = admin.New(backends, cfg.Admin, startTime, version)
		adminSrv.Start()
	}

	if v != nil {
		config.Watch(v, func(newCfg config.Config) {
			// Listen addresses are fixed at startup; only the dispatcher's
			// dial timeout and pipe buffer are applied on reload.
			d.SetConfig(dispatcher.Config{
				DialTimeout: newCfg.ParsedDialTimeout(),
				PipeBuffer:  newCfg.PipeBuffer,
			})
			slog.Info("hot-reload applied",
				"dial_timeout", newCfg.ParsedDialTimeout(),
				"pipe_buffer", newCfg.PipeBuffer,
				"health_check", newCfg.HealthCheck.Enabled,
			)
		})
	}

	slog.Info("load balancer listening",
		"client_addr", cfg.ClientAddr,
		"registration_addr", cfg.RegistrationAddr,
		"metrics_addr", cfg.MetricsAddr,
		"health_check", cfg.HealthCheck.Enabled,
		"admin", cfg.Admin.Enabled,
		"version", version,
		"commit", commit,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down load balancer")

	monitor.Stop()
	clientSrv.Close()
	regSrv.Close()
	metricsSrv.Close()

	if adminSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := adminSrv.Stop(ctx); err != nil {
			slog.Error("admin server forced shutdown", "error", err)
		}
	}

	slog.Info("load balancer stopped")
}
