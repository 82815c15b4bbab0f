package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/ledgercache"
	"github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/config"
	"github.com/unkn0wn-root/ledgercache/fetch"
	asynchook "github.com/unkn0wn-root/ledgercache/hooks/async"
	"github.com/unkn0wn-root/ledgercache/hooks/prom"
	"github.com/unkn0wn-root/ledgercache/ledger"
	zaplog "github.com/unkn0wn-root/ledgercache/log/zap"
	pr "github.com/unkn0wn-root/ledgercache/provider"
	"github.com/unkn0wn-root/ledgercache/provider/bigcache"
	"github.com/unkn0wn-root/ledgercache/provider/leveldb"
	"github.com/unkn0wn-root/ledgercache/provider/memory"
	rp "github.com/unkn0wn-root/ledgercache/provider/redis"
	"github.com/unkn0wn-root/ledgercache/provider/ristretto"
	"github.com/unkn0wn-root/ledgercache/sloghooks"
)

type app struct {
	zap    *zap.Logger
	logger ledgercache.Logger
	cache  ledgercache.Cache

	closers []func(context.Context) error
}

func (rt *app) close() {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i](context.Background()))
	}
	if err != nil {
		rt.zap.Warn("shutdown", zap.Error(err))
	}
	_ = rt.zap.Sync()
}

func newZap(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// build wires stores, codec, ledger and hooks from cfg. reg may be nil.
func build(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*app, error) {
	zl, err := newZap(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	rt := &app{zap: zl, logger: zaplog.New(zl)}
	ok := false
	defer func() {
		if !ok {
			rt.close()
		}
	}()

	var rdb goredis.UniversalClient
	if cfg.MetadataDriver == config.DriverRedis || cfg.BulkDriver == config.DriverRedis {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		rdb = client
		rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
	}

	meta, err := metadataStore(cfg, rdb)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, meta.Close)

	var bulk pr.Opener
	switch cfg.BulkDriver {
	case config.DriverLevelDB:
		bulk = leveldb.NewOpener(leveldb.Config{Path: cfg.BulkPath})
	case config.DriverRedis:
		values, err := rp.New(rp.Config{Client: rdb})
		if err != nil {
			return nil, err
		}
		bulk = pr.Shared(values)
	}

	led := ledger.NewMemory()
	if cfg.LedgerSnapshot != "" {
		if led, err = ledger.LoadSnapshot(cfg.LedgerSnapshot); err != nil {
			return nil, err
		}
		zl.Info("development ledger loaded", zap.String("snapshot", cfg.LedgerSnapshot))
	}

	hooks, closeHooks := buildHooks(cfg, reg)
	rt.closers = append(rt.closers, func(context.Context) error { closeHooks(); return nil })

	cache, err := ledgercache.New(ledgercache.Options{
		Ledger:       led,
		Metadata:     meta,
		Bulk:         bulk,
		Codec:        valueCodec(cfg.ValueCodec),
		RemoteValues: cfg.RemoteValues,
		Download: fetch.Config{
			BaseURL:      cfg.DownloadBaseURL,
			Timeout:      cfg.DownloadTimeout.Std(),
			MaxAttempts:  cfg.DownloadMaxAttempts,
			AttemptSleep: cfg.DownloadAttemptSleep.Std(),
			Wrapped:      cfg.WrappedReferences,
		},
		BatchWidth:        cfg.BatchWidth,
		LedgerConcurrency: cfg.LedgerConcurrency,
		Logger:            rt.logger,
		Hooks:             hooks,
	})
	if err != nil {
		return nil, err
	}
	// cache.Close only closes meta, which is already in closers
	rt.cache = cache
	ok = true
	return rt, nil
}

func metadataStore(cfg config.Config, rdb goredis.UniversalClient) (pr.Provider, error) {
	switch cfg.MetadataDriver {
	case config.DriverRedis:
		return rp.New(rp.Config{Client: rdb})
	case config.DriverBigcache:
		return bigcache.New(bigcache.Config{})
	case config.DriverRistretto:
		return ristretto.New(ristretto.Config{NumCounters: 1e6, MaxCost: 64 << 20, BufferItems: 64})
	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown metadata driver %q", cfg.MetadataDriver)
}

func valueCodec(name string) codec.Codec[any] {
	switch name {
	case config.CodecCBOR:
		return codec.MustCBOR[any](true)
	case config.CodecMsgpack:
		return codec.Msgpack[any]{}
	case config.CodecProtobuf:
		return codec.Struct{}
	}
	return codec.JSON[any]{}
}

// buildHooks exports metrics when reg is set and logs pass events through
// slog at debug level. Both run behind one async queue.
func buildHooks(cfg config.Config, reg prometheus.Registerer) (ledgercache.Hooks, func()) {
	var hs ledgercache.MultiHooks
	if reg != nil {
		hs = append(hs, prom.New(reg))
	}
	if cfg.LogLevel == "debug" {
		hs = append(hs, sloghooks.New(slog.Default(), sloghooks.Options{RetryEvery: 10, LogPhases: true}))
	}
	if len(hs) == 0 {
		return ledgercache.NopHooks{}, func() {}
	}
	async := asynchook.New(hs, 1, 1024)
	return async, async.Close
}
