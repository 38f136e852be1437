package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/graphctl/internal/bridge"
	"github.com/danmuck/graphctl/internal/config"
	"github.com/danmuck/graphctl/internal/hostloop"
	"github.com/danmuck/graphctl/internal/simhost"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		statusAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge against the in-process graph host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Service.Listener.Addr = addr
			}
			if cmd.Flags().Changed("status-addr") {
				cfg.Service.StatusAddr = statusAddr
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("GRAPHCTL_CONFIG"), "service config file (toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "loopback listen address")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "loopback status HTTP address")
	return cmd
}

func openStore(cfg config.Config) (simhost.AssetStore, error) {
	if cfg.AssetStore != config.StoreBadger {
		return simhost.NewMemoryStore(), nil
	}
	logger := log.Logger
	return simhost.OpenBadgerStore(simhost.BadgerConfig{Dir: cfg.DataDir, Logger: &logger})
}

// runServe keeps the host loop on the calling goroutine. The bridge runs
// beside it and stops the loop once its own shutdown has finished.
func runServe(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := log.Logger

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	host := simhost.New(simhost.Options{Store: store, Logger: &logger})
	defer func() {
		if err := host.Close(); err != nil {
			logger.Warn().Err(err).Msg("graphctl.serve host close failed")
		}
	}()

	loop := hostloop.New(cfg.QueueDepth, &logger)
	svc, err := bridge.NewService(cfg.Service, loop, host, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		defer stopLoop()
		served <- svc.Serve(ctx)
	}()

	if err := loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-served
}
