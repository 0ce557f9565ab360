package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "github.com/wolfeidau/countries-bundler/internal/assets"

// Build runs esbuild once with the configured settings.
func (p *Pipeline) Build(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "assets.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("bundler.mode", p.config.Mode.String()),
		attribute.String("bundler.entry", p.config.Entry),
	)

	opts, err := p.Options()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	p.logger.Info().
		Str("entry", p.config.Entry).
		Str("mode", p.config.Mode.String()).
		Str("outdir", p.config.Output.Path).
		Msg("Building assets")

	result := api.Build(opts)

	if len(result.Errors) > 0 {
		p.logMessages(result.Errors, result.Warnings)
		span.SetStatus(codes.Error, "esbuild failed with errors")
		return errors.New("esbuild failed with errors")
	}
	p.logMessages(nil, result.Warnings)

	for _, file := range result.OutputFiles {
		p.logger.Info().Str("file", file.Path).Msg("Built file")
	}

	return nil
}

// Watch builds, then rebuilds on every source change until ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context) error {
	opts, err := p.Options()
	if err != nil {
		return err
	}

	bctx, cerr := api.Context(opts)
	if cerr != nil {
		p.logMessages(cerr.Errors, nil)
		return errors.New("failed to create esbuild context")
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}

	p.logger.Info().Str("entry", p.config.Entry).Msg("Watching assets")

	<-ctx.Done()
	return nil
}

func (p *Pipeline) plugins() []api.Plugin {
	var plugins []api.Plugin

	for _, desc := range p.config.Plugins {
		switch desc.Name {
		case buildconfig.PluginHashedModuleIDs:
			// esbuild hashes are derived from output content only
			continue
		case buildconfig.PluginHTML:
			if p.tmpl != nil {
				plugins = append(plugins, p.htmlPlugin())
			}
		}
	}

	// metadata comes first so the html and chunk plugins can read it
	plugins = append([]api.Plugin{p.metadataPlugin()}, plugins...)

	if p.config.Optimization != nil && len(p.config.Optimization.SplitChunks.CacheGroups) > 0 {
		plugins = append(plugins, p.chunkPlanPlugin())
	}

	return plugins
}

func (p *Pipeline) metadataPlugin() api.Plugin {
	return api.Plugin{
		Name: "metadata",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				p.mu.Lock()
				p.started = time.Now()
				p.mu.Unlock()
				return api.OnStartResult{}, os.MkdirAll(p.config.Output.Path, 0o755)
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					p.recordBuild(len(result.Errors), nil)
					return api.OnEndResult{}, nil
				}

				var metadata BuildMetadata
				if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
					p.recordBuild(1, nil)
					return api.OnEndResult{}, fmt.Errorf("failed to parse metafile: %w", err)
				}
				p.recordBuild(0, &metadata)

				if err := os.WriteFile(filepath.Join(p.config.Output.Path, MetafileName), []byte(result.Metafile), 0o600); err != nil {
					return api.OnEndResult{}, err
				}

				p.mu.Lock()
				p.metadata = &metadata
				p.mu.Unlock()

				return api.OnEndResult{}, nil
			})
		},
	}
}

func (p *Pipeline) htmlPlugin() api.Plugin {
	return api.Plugin{
		Name: buildconfig.PluginHTML,
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}

				target := filepath.Join(p.config.Output.Path, p.html.Filename)
				f, err := os.Create(target)
				if err != nil {
					return api.OnEndResult{}, err
				}
				defer f.Close()

				if err := p.RenderShell(f); err != nil {
					return api.OnEndResult{}, err
				}

				p.logger.Info().Str("file", target).Msg("Wrote html shell")
				return api.OnEndResult{}, f.Close()
			})
		},
	}
}

func (p *Pipeline) recordBuild(errCount int, metadata *BuildMetadata) {
	ctx := context.Background()
	mode := metric.WithAttributes(attribute.String("mode", p.config.Mode.String()))

	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()

	p.metrics.BuildsTotal.Add(ctx, 1, mode)
	p.metrics.BuildDuration.Record(ctx, float64(time.Since(started).Microseconds())/1000, mode)
	if errCount > 0 {
		p.metrics.BuildErrorsTotal.Add(ctx, 1, mode)
	}
	if metadata == nil {
		return
	}
	for _, output := range metadata.Outputs {
		p.metrics.OutputBytes.Record(ctx, int64(output.Bytes), mode)
	}
}

// LoadScripts returns the ordered list of scripts statically loaded by the
// entrypoint, entry first, and the entry script path. Paths are relative to
// the output directory.
func (p *Pipeline) LoadScripts() ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", errNotBuilt
	}

	entryKey, err := p.metafilePath(p.config.Abs(p.config.Entry))
	if err != nil {
		return nil, "", err
	}

	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint != entryKey {
			continue
		}

		visited := map[string]bool{outputPath: true}
		scripts := []string{outputPath}
		p.addDependencies(info, &scripts, visited)

		for i, s := range scripts {
			if scripts[i], err = p.publicPath(s); err != nil {
				return nil, "", err
			}
		}
		return scripts, scripts[0], nil
	}

	return nil, "", fmt.Errorf("entrypoint %s not found in metadata", entryKey)
}

func (p *Pipeline) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || imp.Kind == "dynamic-import" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := p.metadata.Outputs[imp.Path]; exists {
			p.addDependencies(chunkInfo, scripts, visited)
		}
	}
}

// metafilePath converts an absolute path into the form esbuild uses in
// metafiles: relative to the working directory with forward slashes.
func (p *Pipeline) metafilePath(abs string) (string, error) {
	rel, err := filepath.Rel(p.config.Context, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// publicPath converts a metafile output path into a URL path relative to the
// output directory.
func (p *Pipeline) publicPath(metafilePath string) (string, error) {
	rel, err := filepath.Rel(p.config.Output.Path, p.config.Abs(filepath.FromSlash(metafilePath)))
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("output %s is outside the output directory", metafilePath)
	}
	return rel, nil
}

func (p *Pipeline) logMessages(errs, warnings []api.Message) {
	for _, msg := range errs {
		event := p.logger.Error().Str("error", msg.Text)
		if msg.Location != nil {
			event = event.Str("file", msg.Location.File).Int("line", msg.Location.Line)
		}
		event.Msg("Build error")
	}
	for _, msg := range warnings {
		p.logger.Warn().Str("warning", msg.Text).Msg("Build warning")
	}
}
