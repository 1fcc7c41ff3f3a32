package main

import (
	"fmt"
	"os"
	"time"

	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration accepts Go durations plus days and weeks ("1d12h", "2w").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := str2duration.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", n.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

type Config struct {
	Origin OriginConfig `yaml:"origin"`
	Memory MemoryConfig `yaml:"memory"`
	Local  LocalConfig  `yaml:"local"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

type OriginConfig struct {
	BaseURL   string   `yaml:"base_url"`
	Timeout   Duration `yaml:"timeout"`
	MaxBody   int64    `yaml:"max_body"`
	UserAgent string   `yaml:"user_agent"`
}

type MemoryConfig struct {
	Enabled bool     `yaml:"enabled"`
	MaxCost int64    `yaml:"max_cost"` // bytes
	TTL     Duration `yaml:"ttl"`
}

// LocalConfig selects the local byte tier: "sqlite", "file", "bigcache" or
// "none".
type LocalConfig struct {
	Kind          string   `yaml:"kind"`
	Path          string   `yaml:"path"`
	TTL           Duration `yaml:"ttl"`
	PurgeInterval Duration `yaml:"purge_interval"`
	MaxSizeMB     int      `yaml:"max_size_mb"`
}

type RedisConfig struct {
	URL    string   `yaml:"url"` // empty disables the tier
	Prefix string   `yaml:"prefix"`
	TTL    Duration `yaml:"ttl"`
	// Generations keeps invalidation generations in Redis so that replicas
	// sharing the tier don't write back values invalidated elsewhere.
	Generations bool `yaml:"generations"`
}

type LogConfig struct {
	Level  string       `yaml:"level"`
	JSON   bool         `yaml:"json"`
	Events EventsConfig `yaml:"events"`
}

// EventsConfig controls logging of tier events (coalesced fetches, skipped
// and failed write-backs, failed invalidations) to stderr.
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`
	Queue   int  `yaml:"queue"`
	// Log only every Nth event of the frequent kinds; 0 or 1 logs all.
	CoalescedEvery   uint64 `yaml:"coalesced_every"`
	StorageReadEvery uint64 `yaml:"storage_read_every"`
}

func defaultConfig() Config {
	return Config{
		Origin: OriginConfig{Timeout: Duration(10 * time.Second), UserAgent: "tierctl"},
		Memory: MemoryConfig{Enabled: true, MaxCost: 64 << 20, TTL: Duration(5 * time.Minute)},
		Local:  LocalConfig{Kind: "none"},
		Redis:  RedisConfig{Prefix: "tierctl:"},
		Log: LogConfig{Level: "info", Events: EventsConfig{
			Enabled:        true,
			Queue:          1024,
			CoalescedEvery: 100,
		}},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, cfg.validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Local.Kind {
	case "", "none", "bigcache":
	case "sqlite", "file":
		if c.Local.Path == "" {
			return fmt.Errorf("local.path is required for %s", c.Local.Kind)
		}
	default:
		return fmt.Errorf("unknown local.kind %q", c.Local.Kind)
	}
	if c.Log.Events.Queue < 0 {
		return fmt.Errorf("log.events.queue must not be negative")
	}
	if c.Memory.Enabled && c.Memory.MaxCost <= 0 {
		return fmt.Errorf("memory.max_cost must be positive")
	}
	return nil
}
