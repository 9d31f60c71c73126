// Command geoproxy holds the geo service credentials and exposes its read
// and record operations over HTTP, with an optional Redis response cache
// kept fresh by record change events on Kafka.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/geoclient/internal/cache"
	"github.com/mohammed-shakir/geoclient/internal/cache/memstore"
	"github.com/mohammed-shakir/geoclient/internal/cache/redisstore"
	"github.com/mohammed-shakir/geoclient/internal/core/config"
	"github.com/mohammed-shakir/geoclient/internal/core/health"
	"github.com/mohammed-shakir/geoclient/internal/core/httpclient"
	"github.com/mohammed-shakir/geoclient/internal/core/observability"
	"github.com/mohammed-shakir/geoclient/internal/core/server"
	"github.com/mohammed-shakir/geoclient/internal/logger"
	h3mapper "github.com/mohammed-shakir/geoclient/internal/mapper/h3"
	"github.com/mohammed-shakir/geoclient/internal/recordevents"
	"github.com/mohammed-shakir/geoclient/pkg/client"
	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/invalidation/kafka"
)

var Version = "dev"

// eventCellRes is the H3 resolution of record event cells when context
// caching is off.
const eventCellRes = 9

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	addrFlag := flag.String("addr", "", "listen address, overrides ADDR")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("load env file", "path", *envFile, "err", err)
		return 1
	}
	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "geoproxy",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting geoproxy",
		"addr", cfg.Addr,
		"version", Version,
		"upstream", cfg.GeoAPIURL,
		"cache", cfg.CacheEnabled,
		"events", cfg.Events.Enabled,
		"invalidation", cfg.Invalidation.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []client.Option{client.WithContextCellRes(cfg.ContextCellRes)}
	if cfg.OAuthKey != "" {
		opts = append(opts, client.WithSigner(client.NewOAuth1(cfg.OAuthKey, cfg.OAuthSecret)))
	} else {
		appLog.Warn("GEO_OAUTH_KEY not set, upstream requests are unsigned")
	}

	deps := server.Deps{Pingers: map[string]health.Pinger{}}

	var respCache cache.Interface
	if cfg.CacheEnabled {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() {
			if err := rc.Close(); err != nil {
				appLog.Warn("redis close", "err", err)
			}
		}()
		deps.Pingers["redis"] = rc
		respCache = &cache.Tiered{
			Front:    memstore.New(cfg.CacheLRUSize, cfg.CacheTTL),
			Back:     rc,
			FrontTTL: cfg.CacheTTL,
		}
		opts = append(opts,
			client.WithCache(respCache, cfg.CacheTTL),
			client.WithCacheTTLOverrides(cfg.CacheTTLOvr),
			client.WithCacheOpTimeout(cfg.CacheOpTimeout))
	}

	if cfg.Events.Enabled {
		pub, err := recordevents.NewPublisher(appLog, config.SplitList(cfg.Events.Brokers), cfg.Events.Topic, 1024)
		if err != nil {
			appLog.Error("record event publisher", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("record event publisher close", "err", err)
			}
		}()
		res := cfg.ContextCellRes
		if res < 0 {
			res = eventCellRes
		}
		b := recordevents.Builder{Mapper: h3mapper.New(), Res: res}
		opts = append(opts, client.WithRecordHook(func(_ context.Context, op, layer, id string, f *geo.Feature) {
			pub.Publish(b.Build(recordevents.Op(op), layer, id, f))
		}))
	}

	geoClient, err := client.New(appLog, httpclient.NewOutbound(cfg.HTTPTimeout), cfg.GeoAPIURL, opts...)
	if err != nil {
		appLog.Error("geo client setup failed", "err", err)
		return 1
	}
	deps.Geo = geoClient

	if cfg.Invalidation.Enabled {
		if respCache == nil {
			appLog.Warn("invalidation enabled without CACHE_ENABLED, ignoring")
		} else {
			runner := kafka.New(kafka.FromConfig(cfg.Invalidation), respCache, kafka.Options{
				Logger:   appLog.With("component", "invalidation"),
				Register: prometheus.DefaultRegisterer,
			})
			if err := runner.Start(ctx); err != nil {
				appLog.Error("invalidation runner start failed", "err", err)
				return 1
			}
			defer runner.Stop()
			deps.Runner = runner
		}
	}

	if err := server.Run(ctx, cfg, appLog, server.NewHandler(appLog, deps)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
