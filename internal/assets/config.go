package assets

import (
	"fmt"
	"strconv"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
)

// Options translates the configuration record into esbuild build options.
//
// Production builds emit ES modules with code splitting enabled, since esbuild
// only splits ESM output; the HTML shell re-exposes the entry exports under the
// library name. Development builds emit a single IIFE assigned to the library
// global.
func (p *Pipeline) Options() (api.BuildOptions, error) {
	cfg := p.config

	tmpl, err := buildconfig.ParseFilename(cfg.Output.Filename)
	if err != nil {
		return api.BuildOptions{}, err
	}
	pattern, err := tmpl.Pattern()
	if err != nil {
		return api.BuildOptions{}, err
	}

	prod := cfg.Mode == buildconfig.Production

	opts := api.BuildOptions{
		EntryPointsAdvanced: []api.EntryPoint{
			{InputPath: cfg.Entry, OutputPath: mainChunkName},
		},
		AbsWorkingDir:     cfg.Context,
		Outdir:            cfg.Output.Path,
		EntryNames:        pattern,
		ChunkNames:        pattern,
		Bundle:            true,
		Write:             true,
		Metafile:          true,
		Platform:          api.PlatformBrowser,
		LogLevel:          api.LogLevelSilent,
		TreeShaking:       api.TreeShakingTrue,
		MinifyWhitespace:  prod,
		MinifyIdentifiers: prod,
		MinifySyntax:      prod,
		Sourcemap:         cond(prod, api.SourceMapNone, api.SourceMapLinked),
		Define: map[string]string{
			"process.env.NODE_ENV": strconv.Quote(cfg.Mode.String()),
		},
	}

	if tmpl.Ext != "" && tmpl.Ext != ".js" {
		opts.OutExtension = map[string]string{".js": tmpl.Ext}
	}

	if p.bridgesLibrary() {
		opts.Format = api.FormatESModule
		opts.Splitting = true
	} else {
		globalName, err := globalName(cfg.Output)
		if err != nil {
			return api.BuildOptions{}, err
		}
		opts.Format = api.FormatIIFE
		opts.GlobalName = globalName
	}

	opts.Plugins = p.plugins()

	return opts, nil
}

func globalName(out buildconfig.Output) (string, error) {
	if out.Library == "" {
		return "", nil
	}

	switch out.LibraryTarget {
	case "", "var":
		return out.Library, nil
	case "window", "self", "globalThis":
		return out.LibraryTarget + "." + out.Library, nil
	default:
		return "", fmt.Errorf("unsupported library target %q", out.LibraryTarget)
	}
}

// module formats where the shell has to assign the library global itself
func (p *Pipeline) bridgesLibrary() bool {
	cfg := p.config
	return cfg.Mode == buildconfig.Production && cfg.Optimization != nil && cfg.Optimization.SplitChunks.Chunks == "all"
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
