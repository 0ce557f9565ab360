package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfeidau/countries-bundler/internal/logger"
	"gopkg.in/yaml.v3"
)

type ConfigCmd struct {
	Format string `help:"Output format" default:"json" enum:"json,yaml" short:"f"`
}

func (c *ConfigCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := globals.resolveConfig(log)
	if err != nil {
		return err
	}

	switch c.Format {
	case "yaml":
		enc := yaml.NewEncoder(globals.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(globals.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return nil
	}
}
