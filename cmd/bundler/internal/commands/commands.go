package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
	"github.com/wolfeidau/countries-bundler/internal/telemetry"
)

const serviceName = "countries-bundler"

type Globals struct {
	Debug   bool
	Version string
	// Mode is the raw mode signal, read once at startup.
	Mode    string
	Strict  bool
	Tracing bool
	Root    string
	Stdout  io.Writer
}

// resolveConfig turns the startup flags into a validated configuration record.
func (g *Globals) resolveConfig(log zerolog.Logger) (buildconfig.Config, error) {
	root, err := filepath.Abs(g.Root)
	if err != nil {
		return buildconfig.Config{}, fmt.Errorf("failed to resolve project root: %w", err)
	}

	mode, known := buildconfig.ParseMode(g.Mode)
	if !known {
		if g.Strict {
			return buildconfig.Config{}, fmt.Errorf("unrecognized mode signal %q, use %q for development or leave it unset for production", g.Mode, buildconfig.DevSignal)
		}
		log.Warn().Str("signal", g.Mode).Msg("Unrecognized mode signal, building for production")
	}

	cfg := buildconfig.Resolve(root, mode)
	if err := cfg.Validate(); err != nil {
		return buildconfig.Config{}, err
	}

	log.Debug().Str("root", root).Str("mode", cfg.Mode.String()).Msg("Resolved build configuration")
	return cfg, nil
}

// startTelemetry initializes OTLP export when tracing is enabled and returns
// a function flushing it.
func (g *Globals) startTelemetry(ctx context.Context, log zerolog.Logger, command string) func() {
	if !g.Tracing {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, g.buildInfo(command))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func (g *Globals) buildInfo(command string) telemetry.BuildInfo {
	mode, _ := buildconfig.ParseMode(g.Mode)
	return telemetry.BuildInfo{
		Service: serviceName,
		Version: g.Version,
		Command: command,
		Mode:    mode.String(),
		Root:    g.Root,
	}
}
