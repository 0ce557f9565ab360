package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/countries-bundler/internal/assets"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
	"github.com/wolfeidau/countries-bundler/internal/logger"
)

type BuildCmd struct{}

func (b *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	stopTelemetry := globals.startTelemetry(ctx, log, "build")
	defer stopTelemetry()

	cfg, err := globals.resolveConfig(log)
	if err != nil {
		return err
	}

	pipeline, err := assets.New(cfg, assets.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}

	if err := pipeline.Build(ctx); err != nil {
		return fmt.Errorf("failed to build js assets: %w", err)
	}

	if cfg.Mode == buildconfig.Production {
		plan, err := pipeline.ChunkPlan()
		if err != nil {
			return err
		}
		for _, chunk := range plan.Chunks {
			log.Info().
				Str("chunk", chunk.Name).
				Int("modules", len(chunk.Modules)).
				Strs("outputs", chunk.Outputs).
				Msg("Vendor chunk")
		}
	}

	log.Info().Str("outdir", cfg.Output.Path).Msg("Build complete")
	return nil
}
