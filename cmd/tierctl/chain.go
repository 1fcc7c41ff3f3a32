package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/genstore"
	"github.com/unkn0wn-root/tiercache/source/httpsource"
	bcstore "github.com/unkn0wn-root/tiercache/store/bigcache"
	"github.com/unkn0wn-root/tiercache/store/file"
	rstore "github.com/unkn0wn-root/tiercache/store/redis"
	rcstore "github.com/unkn0wn-root/tiercache/store/ristretto"
	"github.com/unkn0wn-root/tiercache/store/sqlite"
)

// pipeline is the assembled chain plus what has to be released on exit.
type pipeline struct {
	cache   tiercache.Cache[string, []byte]
	closers []func(context.Context) error
}

func (p *pipeline) Close(ctx context.Context) error {
	var errs []error
	// front tiers first, reverse of construction
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func frame() codec.Codec[[]byte] { return codec.Framed[[]byte]{Inner: codec.Bytes{}} }

func key(id string) string { return id }

// buildPipeline wires origin <- redis <- local <- memory, skipping the tiers
// the config disables.
func buildPipeline(ctx context.Context, cfg Config, log tiercache.Logger, hooks tiercache.Hooks) (_ *pipeline, err error) {
	p := &pipeline{}
	defer func() {
		if err != nil {
			_ = p.Close(ctx)
		}
	}()

	src := httpsource.New(httpsource.Config{
		Client:    &http.Client{Timeout: time.Duration(cfg.Origin.Timeout)},
		BaseURL:   cfg.Origin.BaseURL,
		MaxBody:   cfg.Origin.MaxBody,
		UserAgent: cfg.Origin.UserAgent,
		Logger:    log,
	})
	c, err := tiercache.NewBackstop(tiercache.BackstopOptions[string, []byte, string, []byte]{
		Config:      tiercache.Config{Name: "origin", Logger: log},
		Storage:     src,
		IDConverter: key,
		FromStorage: func(_ context.Context, b []byte) ([]byte, error) { return b, nil },
	})
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL != "" {
		opts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := goredis.NewClient(opts)
		s, err := rstore.New(rstore.Config{
			Client:      rdb,
			Prefix:      cfg.Redis.Prefix,
			TTL:         time.Duration(cfg.Redis.TTL),
			CloseClient: true,
		})
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		p.closers = append(p.closers, s.Close)

		topts := tiercache.CodecOptions(c, s, key, frame(), tiercache.Config{Name: "redis", Logger: log, Hooks: hooks})
		if cfg.Redis.Generations {
			topts.Generations = genstore.NewRedisGenStoreWithTTL(rdb, cfg.Redis.Prefix+"gens", 24*time.Hour)
		}
		if c, err = tiercache.NewTier(topts); err != nil {
			return nil, err
		}
	}

	var local tiercache.Storage[string, []byte]
	switch cfg.Local.Kind {
	case "sqlite":
		s, err := sqlite.Open(sqlite.Config{
			Path:          cfg.Local.Path,
			TTL:           time.Duration(cfg.Local.TTL),
			PurgeInterval: time.Duration(cfg.Local.PurgeInterval),
		})
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, s.Close)
		local = s
	case "file":
		s, err := file.New(cfg.Local.Path)
		if err != nil {
			return nil, err
		}
		local = s
	case "bigcache":
		s, err := bcstore.New(ctx, bcstore.Config{
			LifeWindow:         max(time.Duration(cfg.Local.TTL), time.Minute),
			HardMaxCacheSizeMB: cfg.Local.MaxSizeMB,
		})
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, s.Close)
		local = s
	}
	if local != nil {
		lopts := tiercache.CodecOptions(c, local, key, frame(), tiercache.Config{Name: "local", Logger: log, Hooks: hooks})
		gens := genstore.NewLocalGenStore[string](time.Minute, time.Hour)
		p.closers = append(p.closers, gens.Close)
		lopts.Generations = gens
		if c, err = tiercache.NewTier(lopts); err != nil {
			return nil, err
		}
	}

	if cfg.Memory.Enabled {
		s, err := rcstore.New(rcstore.Config[[]byte]{
			NumCounters: max(cfg.Memory.MaxCost/1024*10, 1000),
			MaxCost:     cfg.Memory.MaxCost,
			BufferItems: 64,
			TTL:         time.Duration(cfg.Memory.TTL),
			Cost:        func(b []byte) int64 { return int64(len(b)) },
		})
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, s.Close)
		if c, err = tiercache.NewStorageTier(c, s, tiercache.Config{Name: "memory", Logger: log, Hooks: hooks}); err != nil {
			return nil, err
		}
	}

	p.cache = c
	return p, nil
}
