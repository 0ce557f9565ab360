package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfeidau/countries-bundler/internal/assets"
	"github.com/wolfeidau/countries-bundler/internal/devserver"
	"github.com/wolfeidau/countries-bundler/internal/logger"
)

type ServeCmd struct {
	Host  string `help:"Override the dev server host" env:"BUNDLER_HOST"`
	Port  int    `help:"Override the dev server port" env:"BUNDLER_PORT"`
	Watch bool   `help:"Rebuild when sources change" default:"true" negatable:""`
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	stopTelemetry := globals.startTelemetry(ctx, log, "serve")
	defer stopTelemetry()

	cfg, err := globals.resolveConfig(log)
	if err != nil {
		return err
	}
	if s.Host != "" {
		cfg.DevServer.Host = s.Host
	}
	if s.Port != 0 {
		cfg.DevServer.Port = s.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pipeline, err := assets.New(cfg, assets.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !s.Watch {
		if err := pipeline.Build(ctx); err != nil {
			return fmt.Errorf("failed to build js assets: %w", err)
		}
		return devserver.New(cfg.DevServer, log).ListenAndServe(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var watchErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipeline.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("Watch failed")
			watchErr = err
			cancel()
		}
	}()

	err = devserver.New(cfg.DevServer, log).ListenAndServe(ctx)
	cancel()
	<-done

	return errors.Join(err, watchErr)
}
