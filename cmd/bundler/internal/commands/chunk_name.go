package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
)

type ChunkNameCmd struct {
	Marker string   `help:"Vendor directory marker" default:"node_modules"`
	Prefix string   `help:"Chunk name prefix" default:"npm."`
	Paths  []string `arg:"" help:"Module paths"`
}

// Run prints one line per path: the path and its chunk name, or "-" when the
// module is not a vendor module.
func (c *ChunkNameCmd) Run(ctx context.Context, globals *Globals) error {
	group := buildconfig.CacheGroup{Test: c.Marker, Prefix: c.Prefix}

	for _, p := range c.Paths {
		name, ok := group.ChunkName(p)
		if !ok {
			name = "-"
		}
		if _, err := fmt.Fprintf(globals.Stdout, "%s\t%s\n", p, name); err != nil {
			return err
		}
	}
	return nil
}
