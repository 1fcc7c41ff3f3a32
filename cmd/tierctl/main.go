// Command tierctl fetches URLs through a memory, local and Redis cache chain
// in front of an HTTP origin.
//
//	tierctl --config tierctl.yaml fetch https://example.com/a.json
//	tierctl --config tierctl.yaml invalidate https://example.com/a.json
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/tiercache"
	asynchook "github.com/unkn0wn-root/tiercache/hooks/async"
	tzap "github.com/unkn0wn-root/tiercache/log/zap"
	"github.com/unkn0wn-root/tiercache/sloghooks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    Config
	log    *zap.Logger
	events *asynchook.Hooks
	pipe   *pipeline
}

func newLogger(cfg LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.JSON {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// newEventHooks logs tier events off the fetch path. It returns nil when
// events are disabled.
func newEventHooks(cfg LogConfig, w io.Writer) (*asynchook.Hooks, error) {
	if !cfg.Events.Enabled {
		return nil, nil
	}
	zl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: slogLevel(zl)}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.JSON {
		h = slog.NewJSONHandler(w, opts)
	}
	raw := sloghooks.New(slog.New(h), sloghooks.Options{
		CoalescedEvery:   cfg.Events.CoalescedEvery,
		StorageReadEvery: cfg.Events.StorageReadEvery,
	})
	return asynchook.New(raw, 1, cfg.Events.Queue), nil
}

func slogLevel(l zapcore.Level) slog.Level {
	switch {
	case l <= zapcore.DebugLevel:
		return slog.LevelDebug
	case l == zapcore.InfoLevel:
		return slog.LevelInfo
	case l == zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		configPath string
		a          app
	)

	root := &cobra.Command{
		Use:          "tierctl",
		Short:        "Fetch and invalidate values through a tiered cache",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().String("base-url", "", "origin base URL, overrides origin.base_url")

	setup := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if u, _ := cmd.Flags().GetString("base-url"); u != "" {
			cfg.Origin.BaseURL = u
		}
		log, err := newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
		events, err := newEventHooks(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			_ = log.Sync()
			return fmt.Errorf("log.level: %w", err)
		}
		var hooks tiercache.Hooks
		if events != nil {
			hooks = events
		}
		pipe, err := buildPipeline(cmd.Context(), cfg, tzap.New(log), hooks)
		if err != nil {
			if events != nil {
				events.Close()
			}
			_ = log.Sync()
			return err
		}
		a = app{cfg: cfg, log: log, events: events, pipe: pipe}
		return nil
	}
	teardown := func(cmd *cobra.Command, _ []string) error {
		err := a.pipe.Close(context.WithoutCancel(cmd.Context()))
		if a.events != nil {
			a.events.Close()
			if n := a.events.Dropped(); n > 0 {
				a.log.Warn("tier events dropped", zap.Uint64("count", n))
			}
		}
		_ = a.log.Sync()
		return err
	}

	fetch := &cobra.Command{
		Use:      "fetch <id>...",
		Short:    "Fetch ids through the chain and write their bodies to stdout",
		Args:     cobra.MinimumNArgs(1),
		PreRunE:  setup,
		PostRunE: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := out
			if q, _ := cmd.Flags().GetBool("quiet"); q {
				w = io.Discard
			}
			return runFetch(cmd.Context(), w, a.pipe.cache, a.log, args)
		},
	}
	fetch.Flags().Bool("quiet", false, "do not print bodies")

	invalidate := &cobra.Command{
		Use:      "invalidate <id>...",
		Short:    "Remove ids from every tier",
		Args:     cobra.MinimumNArgs(1),
		PreRunE:  setup,
		PostRunE: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvalidate(cmd.Context(), a.pipe.cache, a.log, args)
		},
	}

	showConfig := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}

	root.AddCommand(fetch, invalidate, showConfig)
	return root
}

func runFetch(ctx context.Context, out io.Writer, c tiercache.Cache[string, []byte], log *zap.Logger, ids []string) error {
	var missing int
	for _, id := range ids {
		b, ok, err := c.Fetch(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", id, err)
		}
		if !ok {
			log.Warn("not found", zap.String("id", id))
			missing++
			continue
		}
		if _, err := out.Write(b); err != nil {
			return err
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d ids not found", missing, len(ids))
	}
	return nil
}

func runInvalidate(ctx context.Context, c tiercache.Cache[string, []byte], log *zap.Logger, ids []string) error {
	var failed int
	for _, id := range ids {
		if err := c.Invalidate(ctx, id); err != nil {
			log.Error("invalidate failed", zap.String("id", id), zap.Error(err))
			failed++
			continue
		}
		log.Info("invalidated", zap.String("id", id))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d invalidations failed", failed, len(ids))
	}
	return nil
}
