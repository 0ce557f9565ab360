package assets

import (
	"context"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
)

// ChunkPlan lists, per vendor chunk, the modules the cache groups assign to it
// and the esbuild outputs those modules ended up in.
type ChunkPlan struct {
	Chunks []PlannedChunk `json:"chunks"`
}

type PlannedChunk struct {
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Modules []string `json:"modules"`
	Outputs []string `json:"outputs"`
}

// Chunk returns the planned chunk with the given name.
func (c *ChunkPlan) Chunk(name string) (PlannedChunk, bool) {
	for _, chunk := range c.Chunks {
		if chunk.Name == name {
			return chunk, true
		}
	}
	return PlannedChunk{}, false
}

// PlanChunks assigns every input module matched by a cache group to the chunk
// the group names. Groups are tried in name order and the first match wins.
func PlanChunks(groups map[string]buildconfig.CacheGroup, metadata *BuildMetadata) *ChunkPlan {
	groupNames := slices.Sorted(maps.Keys(groups))

	type acc struct {
		group   string
		modules []string
		outputs map[string]bool
	}
	chunks := map[string]*acc{}
	moduleChunk := map[string]string{}

	for _, module := range slices.Sorted(maps.Keys(metadata.Inputs)) {
		for _, groupName := range groupNames {
			name, ok := groups[groupName].ChunkName(module)
			if !ok {
				continue
			}
			c, exists := chunks[name]
			if !exists {
				c = &acc{group: groupName, outputs: map[string]bool{}}
				chunks[name] = c
			}
			c.modules = append(c.modules, module)
			moduleChunk[module] = name
			break
		}
	}

	for outputPath, info := range metadata.Outputs {
		for module := range info.Inputs {
			if name, ok := moduleChunk[module]; ok {
				chunks[name].outputs[outputPath] = true
			}
		}
	}

	plan := &ChunkPlan{Chunks: []PlannedChunk{}}
	for _, name := range slices.Sorted(maps.Keys(chunks)) {
		c := chunks[name]
		outputs := slices.Sorted(maps.Keys(c.outputs))
		if outputs == nil {
			outputs = []string{}
		}
		plan.Chunks = append(plan.Chunks, PlannedChunk{
			Name:    name,
			Group:   c.group,
			Modules: c.modules,
			Outputs: outputs,
		})
	}

	return plan
}

func (p *Pipeline) chunkPlanPlugin() api.Plugin {
	return api.Plugin{
		Name: "split-chunks",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}

				metadata, err := p.Metadata()
				if err != nil {
					return api.OnEndResult{}, err
				}

				plan := PlanChunks(p.config.Optimization.SplitChunks.CacheGroups, metadata)

				data, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return api.OnEndResult{}, err
				}
				if err := os.WriteFile(filepath.Join(p.config.Output.Path, ChunkPlanName), data, 0o600); err != nil {
					return api.OnEndResult{}, err
				}

				p.mu.Lock()
				p.plan = plan
				p.mu.Unlock()

				p.metrics.VendorChunks.Record(context.Background(), int64(len(plan.Chunks)))
				p.logger.Info().Int("chunks", len(plan.Chunks)).Msg("Planned vendor chunks")
				return api.OnEndResult{}, nil
			})
		},
	}
}
