// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command qod runs the QoS session lifecycle service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/qod/internal/api"
	"github.com/ManuGH/qod/internal/config"
	"github.com/ManuGH/qod/internal/daemon"
	qosmanager "github.com/ManuGH/qod/internal/domain/qos/manager"
	"github.com/ManuGH/qod/internal/domain/qos/store"
	"github.com/ManuGH/qod/internal/identity"
	"github.com/ManuGH/qod/internal/lock"
	xglog "github.com/ManuGH/qod/internal/log"
	platnet "github.com/ManuGH/qod/internal/platform/net"
	"github.com/ManuGH/qod/internal/telemetry"
	"github.com/ManuGH/qod/internal/version"
	"github.com/redis/go-redis/v9"
)

const serviceName = "qod"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML); defaults to $QOD_CONFIG")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: serviceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := resolveConfigPath(*configPath)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: serviceName,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")
	logger.Info().
		Str("event", "config.loaded").
		Str("source", displayPath(path)).
		Str("store", cfg.Store.Backend).
		Str("lock", cfg.Lock.Backend).
		Strs("publishers", cfg.Notify.Publishers).
		Str("network", platnet.SanitizeURL(cfg.Network.BaseURL)).
		Msg("loaded configuration")

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon stopped with error")
		stop()
		os.Exit(1)
	}
}

// run wires every subsystem from cfg and blocks until ctx is done.
func run(ctx context.Context, cfg config.AppConfig) (err error) {
	logger := xglog.WithComponent("daemon")

	// Resources opened before the app exists are closed here on failure and
	// by the app's shutdown hooks otherwise.
	var closers []closer
	handedOff := false
	defer func() {
		if handedOff {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].fn()
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	closers = append(closers, closer{name: "telemetry", fn: func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(sctx)
	}})

	sessions, err := store.OpenSessionStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	closers = append(closers, closer{name: "store", fn: sessions.Close})

	var rdb *redis.Client
	if needsRedis(cfg) {
		rdb, err = lock.DialRedis(redisConfig(cfg))
		if err != nil {
			return err
		}
		closers = append(closers, closer{name: "redis", fn: rdb.Close})
	}

	locker, lockCloser, err := buildLocker(cfg, rdb, xglog.WithComponent("lock"))
	if err != nil {
		return err
	}
	if lockCloser != nil {
		closers = append(closers, *lockCloser)
	}

	publisher, watchers, err := buildPublisher(cfg, rdb)
	if err != nil {
		return err
	}

	netClient, err := buildNetwork(cfg.Network, logger)
	if err != nil {
		return err
	}

	profiles, profileWatcher, err := buildProfiles(cfg.Profiles)
	if err != nil {
		return err
	}
	if profileWatcher != nil {
		watchers = append(watchers, profileWatcher)
	}

	coord := &qosmanager.Coordinator{
		Store:     sessions,
		Profiles:  profiles,
		Network:   netClient,
		Publisher: publisher,
		Identity:  identity.Resolver{AllowAnonymous: cfg.Session.AllowAnonymous},
		Config: qosmanager.Config{
			AsyncAllocation: cfg.Session.AsyncAllocation,
			DefaultDuration: cfg.Session.DefaultDuration,
			DeletionDelay:   cfg.Session.DeletionDelay,
			NotificationURL: cfg.NotificationURL(),
			PublishTimeout:  cfg.Notify.Timeout,
			UpstreamTimeout: cfg.Network.Timeout,
		},
	}
	if err := coord.Validate(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	scheduler := qosmanager.NewScheduler()
	sweeper := &qosmanager.Sweeper{
		Coord:     coord,
		Locker:    locker,
		Scheduler: scheduler,
		Conf: qosmanager.SweeperConfig{
			Interval:  cfg.Sweep.Interval,
			LookAhead: cfg.Sweep.LookAhead,
			LockTTL:   cfg.Sweep.LockTTL,
			LockKey:   cfg.Lock.Key,
		},
	}

	server := api.New(api.Config{
		MaskSensitiveData: cfg.Masking.Enabled,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		TracingService:    serviceName,
	}, coord)

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:     logger,
		APIHandler: server.Handler(),
	})
	if err != nil {
		return err
	}

	app, err := daemon.NewApp(daemon.AppDeps{
		Logger:       logger,
		Manager:      mgr,
		Coordinator:  coord,
		Sweeper:      sweeper,
		Scheduler:    scheduler,
		Watchers:     watchers,
		DrainTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	for _, c := range closers {
		app.RegisterShutdownHook(c.name, func(context.Context) error { return c.fn() })
	}
	handedOff = true

	return app.Run(ctx)
}
