// Command bmlt-proxy serves a meeting finder API in front of a BMLT root
// server, optionally caching searches per H3 cell.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/bmlt-go/internal/cache"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/cellindex"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/lrustore"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/redisstore"
	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
	"github.com/mohammed-shakir/bmlt-go/internal/core/health"
	"github.com/mohammed-shakir/bmlt-go/internal/core/httpclient"
	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
	"github.com/mohammed-shakir/bmlt-go/internal/core/server"
	"github.com/mohammed-shakir/bmlt-go/internal/geocache"
	"github.com/mohammed-shakir/bmlt-go/internal/hotness/expdecay"
	"github.com/mohammed-shakir/bmlt-go/internal/hotness/metricswrap"
	"github.com/mohammed-shakir/bmlt-go/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/bmlt-go/internal/logger"
	h3mapper "github.com/mohammed-shakir/bmlt-go/internal/mapper/h3"
	"github.com/mohammed-shakir/bmlt-go/internal/metrics"
	"github.com/mohammed-shakir/bmlt-go/internal/scenarios"
	_ "github.com/mohammed-shakir/bmlt-go/internal/scenarios/cache"
	_ "github.com/mohammed-shakir/bmlt-go/internal/scenarios/direct"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

var Version = "dev"

const hotPruneFloor = 0.01

func main() {
	os.Exit(run())
}

func run() int {
	scenarioFlag := flag.String("scenario", "", "scenario name (direct|cache)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		return 1
	}
	if *scenarioFlag != "" {
		cfg.Scenario = strings.TrimSpace(*scenarioFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Scenario:  cfg.Scenario,
		Component: "bmlt-proxy",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid config", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.SetScenario(cfg.Scenario)
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, appLog)
	if err != nil {
		appLog.Error("tracing setup failed", "err", err)
		return 1
	}
	defer observability.ShutdownTracing(context.Background(), shutdownTracing, appLog)

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})

	appLog.Info("starting bmlt proxy",
		"addr", cfg.Addr,
		"version", Version,
		"root_server", cfg.BMLT.RootServerURL,
		"scenario", cfg.Scenario)

	client, closeGeo, err := newClient(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("bmlt client setup failed", "err", err)
		return 1
	}
	defer closeGeo()

	ready := map[string]health.Check{}
	deps := scenarios.Deps{Client: client, Mapper: h3mapper.New()}

	if cfg.Scenario == "cache" {
		store, closeStore, ping, err := newStore(ctx, cfg)
		if err != nil {
			appLog.Error("cache store setup failed", "err", err, "backend", cfg.Cache.Backend)
			return 1
		}
		defer closeStore()
		if ping != nil {
			ready["cache"] = ping
		}

		tracker := expdecay.New(cfg.HotHalfLife)
		hot := metricswrap.New(tracker, cfg.HotThreshold, &zl)
		go pruneHotness(ctx, tracker, cfg.HotHalfLife, &zl)

		deps.Store = store
		deps.Index = cellindex.New(store)
		deps.Hot = hot

		if cfg.Invalidation.Enabled {
			consumer := kafkaconsumer.New(kafkaconsumer.ConfigFrom(cfg), appLog, &zl, deps.Index, deps.Mapper, hot)
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer failed to start", "err", err)
				return 1
			}
			defer consumer.Stop()
			ready["consumer"] = health.ConsumerCheck(consumer)
		}
	}

	handler, err := scenarios.New(cfg.Scenario, cfg, appLog, deps)
	if err != nil {
		appLog.Error("scenario setup failed", "err", err)
		return 1
	}

	opts := server.Options{Ready: ready}
	if cfg.Metrics.Enabled {
		opts.Metrics = prov.Handler()
	}
	if err := server.Run(ctx, cfg, appLog, handler, opts); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// newClient builds the BMLT client and, when enabled, its geocoder with a
// memory cache in front of an optional Postgres one.
func newClient(ctx context.Context, cfg config.Config, log *slog.Logger) (*bmlt.Client, func(), error) {
	noop := func() {}
	format, err := bmlt.ParseDataFormat(cfg.BMLT.DefaultFormat)
	if err != nil {
		return nil, noop, err
	}
	httpClient := httpclient.NewOutbound(time.Duration(cfg.BMLT.Timeout) * time.Second)

	var geocoder *bmlt.GeocodingService
	closer := noop
	if cfg.Geocoding.Enabled {
		vb, err := cfg.Geocoding.ParseViewBox()
		if err != nil {
			return nil, noop, err
		}
		mem, err := geocache.NewMemory(cfg.Geocoding.CacheSize)
		if err != nil {
			return nil, noop, err
		}
		var gc bmlt.GeocodeCache = mem
		if cfg.Geocoding.CacheDSN != "" {
			db, err := geocache.Open(ctx, cfg.Geocoding.CacheDSN)
			if err != nil {
				return nil, noop, err
			}
			closer = func() { _ = db.Close() }
			sqlCache := geocache.NewSQLCache(db)
			if err := sqlCache.InitSchema(ctx); err != nil {
				closer()
				return nil, noop, err
			}
			gc = geocache.Tiered{Front: mem, Back: sqlCache}
		}
		geocoder = bmlt.NewGeocodingService(bmlt.GeocodingConfig{
			BaseURL:      cfg.Geocoding.BaseURL,
			Timeout:      cfg.BMLT.Timeout,
			Retries:      cfg.Geocoding.Retries,
			UserAgent:    cfg.BMLT.UserAgent,
			CountryCodes: cfg.Geocoding.CountryCodes,
			ViewBox:      vb,
			Bounded:      cfg.Geocoding.Bounded,
			HTTPClient:   httpClient,
			Cache:        gc,
			Logger:       log,
		})
	}

	client, err := bmlt.NewClient(bmlt.Config{
		RootServerURL:   cfg.BMLT.RootServerURL,
		DefaultFormat:   format,
		Timeout:         cfg.BMLT.Timeout,
		UserAgent:       cfg.BMLT.UserAgent,
		EnableGeocoding: cfg.Geocoding.Enabled,
		Geocoder:        geocoder,
		HTTPClient:      httpClient,
		Logger:          log,
	})
	if err != nil {
		closer()
		return nil, noop, err
	}
	return client, closer, nil
}

func newStore(ctx context.Context, cfg config.Config) (cache.Interface, func(), health.Check, error) {
	switch cfg.Cache.Backend {
	case "redis":
		cli, err := redisstore.New(ctx, cfg.Cache.RedisAddr,
			redisstore.WithDialTimeout(2*time.Second),
			redisstore.WithReadTimeout(cfg.Cache.OpTimeout),
			redisstore.WithWriteTimeout(cfg.Cache.OpTimeout),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		return cli, func() { _ = cli.Close() }, cli.Ping, nil
	case "memory":
		st, err := lrustore.New(cfg.Cache.Size)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, func() {}, nil, nil
	}
	return nil, nil, nil, errors.New("unknown cache backend " + cfg.Cache.Backend)
}

// pruneHotness drops keys whose score decayed to noise.
func pruneHotness(ctx context.Context, t *expdecay.Tracker, halfLife time.Duration, zl *zerolog.Logger) {
	every := halfLife
	if every <= 0 || every > time.Minute {
		every = time.Minute
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			n := t.Prune(hotPruneFloor)
			observability.SetHotKeys(t.Size())
			if n > 0 {
				zl.Debug().Int("pruned", n).Msg("hotness prune")
			}
		}
	}
}
