package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/ledgercache/config"
	"github.com/unkn0wn-root/ledgercache/server"
)

type globalFlags struct {
	configPath string
	logLevel   string
	dataset    string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "ledgercached",
		Short:         "Keep a two-tier cache in sync with a sort-key-ordered ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (environment variables override it)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&g.dataset, "dataset", "", "dataset id (overrides DATASET_ID)")

	root.AddCommand(newServeCmd(&g), newSyncCmd(&g), newClearCmd(&g), newGetCmd(&g))
	return root
}

// load reads the configuration, applies flag overrides and validates it.
func (g *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.dataset != "" {
		cfg.DatasetID = g.dataset
	}
	if cfg.DatasetID == "" {
		return cfg, errors.New("dataset id is required (--dataset or DATASET_ID)")
	}
	return cfg, cfg.Validate()
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		skipInitialSync bool
		metrics         bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an initial sync pass, then serve /refresh, /clear, /getRaw and /getManyRaw",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			rt, err := build(ctx, cfg, reg)
			if err != nil {
				return err
			}
			defer rt.close()

			srv := server.New(rt.cache, cfg.DatasetID, rt.logger)
			mux := http.NewServeMux()
			if metrics {
				mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
			}
			mux.Handle("/", srv.Routes())

			hs := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				rt.zap.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("dataset", cfg.DatasetID))
				if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			if skipInitialSync {
				srv.SetReady(true)
			} else if err := srv.InitialSync(ctx); err != nil {
				rt.zap.Error("initial sync failed", zap.Error(err))
				_ = hs.Close()
				return err
			}

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return err
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			rt.zap.Info("shutting down")
			return hs.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&skipInitialSync, "skip-initial-sync", false, "report ready without running a sync pass first")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "expose prometheus metrics on /metrics")
	return cmd
}

func newSyncCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and print the number of refreshed keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			rt, err := build(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			n, err := rt.cache.Sync(cmd.Context(), cfg.DatasetID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d keys\n", n)
			return nil
		},
	}
}

func newClearCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [key...]",
		Short: "Remove cached entries for the given keys, or for every ledger key when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			rt, err := build(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			var keys []string
			if len(args) > 0 {
				keys = args
			}
			n, err := rt.cache.Clear(cmd.Context(), cfg.DatasetID, keys)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d keys\n", n)
			return nil
		},
	}
}

func newGetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get key [key...]",
		Short: "Print cached values as JSON, straight from the bulk store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			rt, err := build(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			vals, err := rt.cache.GetRawMany(cmd.Context(), cfg.DatasetID, args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			out := make(map[string]any, len(args))
			for i, k := range args {
				out[k] = vals[i]
			}
			return enc.Encode(out)
		},
	}
}
