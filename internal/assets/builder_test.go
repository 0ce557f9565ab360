package assets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
	"github.com/wolfeidau/countries-bundler/internal/telemetry"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var hashedMain = regexp.MustCompile(`^main\.[A-Z2-7]{8}\.js$`)

func setupApp(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.CopyFS(root, os.DirFS("testdata/app")))
	return root
}

func newPipeline(t *testing.T, cfg buildconfig.Config) *Pipeline {
	t.Helper()

	p, err := New(cfg, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return p
}

func pluginNames(plugins []api.Plugin) []string {
	names := make([]string, 0, len(plugins))
	for _, plugin := range plugins {
		names = append(names, plugin.Name)
	}
	return names
}

func TestPipeline_Options_development(t *testing.T) {
	root := setupApp(t)
	p := newPipeline(t, buildconfig.Resolve(root, buildconfig.Development))

	opts, err := p.Options()
	require.NoError(t, err)

	assert.Equal(t, []api.EntryPoint{{InputPath: "./src/Index.bs.js", OutputPath: "main"}}, opts.EntryPointsAdvanced)
	assert.Equal(t, root, opts.AbsWorkingDir)
	assert.Equal(t, filepath.Join(root, "dist"), opts.Outdir)
	assert.Equal(t, "[name].[hash]", opts.EntryNames)
	assert.Equal(t, "[name].[hash]", opts.ChunkNames)
	assert.Equal(t, api.FormatIIFE, opts.Format)
	assert.Equal(t, "App", opts.GlobalName)
	assert.False(t, opts.Splitting)
	assert.False(t, opts.MinifyWhitespace)
	assert.Equal(t, api.SourceMapLinked, opts.Sourcemap)
	assert.Equal(t, `"development"`, opts.Define["process.env.NODE_ENV"])
	assert.True(t, opts.Metafile)
	assert.Nil(t, opts.OutExtension)
	assert.Equal(t, []string{"metadata", "html"}, pluginNames(opts.Plugins))
}

func TestPipeline_Options_production(t *testing.T) {
	root := setupApp(t)
	p := newPipeline(t, buildconfig.Resolve(root, buildconfig.Production))

	opts, err := p.Options()
	require.NoError(t, err)

	assert.Equal(t, api.FormatESModule, opts.Format)
	assert.True(t, opts.Splitting)
	assert.Empty(t, opts.GlobalName)
	assert.True(t, opts.MinifyWhitespace)
	assert.True(t, opts.MinifyIdentifiers)
	assert.True(t, opts.MinifySyntax)
	assert.Equal(t, api.SourceMapNone, opts.Sourcemap)
	assert.Equal(t, `"production"`, opts.Define["process.env.NODE_ENV"])
	assert.Equal(t, []string{"metadata", "html", "split-chunks"}, pluginNames(opts.Plugins))
}

func TestPipeline_Options_libraryTarget(t *testing.T) {
	root := setupApp(t)

	cfg := buildconfig.Resolve(root, buildconfig.Development)
	cfg.Output.LibraryTarget = "window"
	opts, err := newPipeline(t, cfg).Options()
	require.NoError(t, err)
	require.Equal(t, "window.App", opts.GlobalName)

	cfg.Output.LibraryTarget = "umd"
	_, err = newPipeline(t, cfg).Options()
	require.ErrorContains(t, err, "unsupported library target")
}

func TestPipeline_Options_outExtension(t *testing.T) {
	root := setupApp(t)

	cfg := buildconfig.Resolve(root, buildconfig.Development)
	cfg.Output.Filename = "[name].[contenthash:8].mjs"
	opts, err := newPipeline(t, cfg).Options()
	require.NoError(t, err)
	require.Equal(t, map[string]string{".js": ".mjs"}, opts.OutExtension)
}

func TestNew(t *testing.T) {
	root := setupApp(t)

	t.Run("invalid config", func(t *testing.T) {
		cfg := buildconfig.Resolve(root, buildconfig.Development)
		cfg.Entry = ""
		_, err := New(cfg)
		require.ErrorIs(t, err, buildconfig.ErrMissingEntry)
	})

	t.Run("missing template", func(t *testing.T) {
		cfg := buildconfig.Resolve(root, buildconfig.Development)
		html, _ := cfg.HTMLPlugin()
		html.Template = "src/missing.html"
		_, err := New(cfg)
		require.ErrorContains(t, err, "failed to read html template")
	})

	t.Run("malformed template", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "src", "broken.html"), []byte("{{ .Title "), 0o600))
		cfg := buildconfig.Resolve(root, buildconfig.Development)
		html, _ := cfg.HTMLPlugin()
		html.Template = "src/broken.html"
		_, err := New(cfg)
		require.ErrorContains(t, err, "failed to parse html template")
	})

	t.Run("no html plugin", func(t *testing.T) {
		cfg := buildconfig.Resolve(root, buildconfig.Development)
		cfg.Plugins = cfg.Plugins[:1]
		p, err := New(cfg)
		require.NoError(t, err)

		opts, err := p.Options()
		require.NoError(t, err)
		require.Equal(t, []string{"metadata"}, pluginNames(opts.Plugins))
	})
}

func TestPipeline_LoadScripts_notBuilt(t *testing.T) {
	p := newPipeline(t, buildconfig.Resolve(setupApp(t), buildconfig.Development))

	_, _, err := p.LoadScripts()
	require.ErrorIs(t, err, errNotBuilt)

	_, err = p.ChunkPlan()
	require.Error(t, err)
}

func TestPipeline_LoadScripts(t *testing.T) {
	p := newPipeline(t, buildconfig.Resolve(setupApp(t), buildconfig.Production))
	p.metadata = &BuildMetadata{
		Outputs: map[string]OutputInfo{
			"dist/main.AAAAAAAA.js": {
				EntryPoint: "src/Index.bs.js",
				Imports: []ImportInfo{
					{Path: "dist/chunk.BBBBBBBB.js", Kind: "import-statement"},
					{Path: "dist/lazy.CCCCCCCC.js", Kind: "dynamic-import"},
					{Path: "https://cdn.example.com/x.js", Kind: "import-statement", External: true},
				},
			},
			"dist/chunk.BBBBBBBB.js": {
				Imports: []ImportInfo{{Path: "dist/chunk.DDDDDDDD.js", Kind: "import-statement"}},
			},
			"dist/chunk.DDDDDDDD.js": {},
			"dist/lazy.CCCCCCCC.js":  {EntryPoint: "src/lazy.js"},
		},
	}

	scripts, entry, err := p.LoadScripts()
	require.NoError(t, err)
	require.Equal(t, "main.AAAAAAAA.js", entry)
	require.Equal(t, []string{"main.AAAAAAAA.js", "chunk.BBBBBBBB.js", "chunk.DDDDDDDD.js"}, scripts)
}

func TestPipeline_RenderShell_module(t *testing.T) {
	p := newPipeline(t, buildconfig.Resolve(setupApp(t), buildconfig.Production))
	p.html = &buildconfig.HTMLOptions{Title: "Countries", Meta: map[string]string{"viewport": "width=device-width, initial-scale=1"}, Filename: "index.html"}
	p.tmpl, _ = parseShell("")
	p.metadata = &BuildMetadata{
		Outputs: map[string]OutputInfo{
			"dist/main.AAAAAAAA.js":  {EntryPoint: "src/Index.bs.js", Imports: []ImportInfo{{Path: "dist/chunk.BBBBBBBB.js", Kind: "import-statement"}}},
			"dist/chunk.BBBBBBBB.js": {},
		},
	}

	var sb strings.Builder
	require.NoError(t, p.RenderShell(&sb))
	html := sb.String()

	assert.Contains(t, html, "<title>Countries</title>")
	assert.Contains(t, html, `<meta name="viewport" content="width=device-width, initial-scale=1">`)
	assert.Contains(t, html, `<link rel="modulepreload" href="chunk.BBBBBBBB.js">`)
	assert.Contains(t, html, `<script type="module">`)
	assert.Contains(t, html, `main.AAAAAAAA.js`)
	assert.Contains(t, html, `window["App"] = lib;`)
}

func TestPipeline_RenderShell_classic(t *testing.T) {
	p := newPipeline(t, buildconfig.Resolve(setupApp(t), buildconfig.Development))
	p.html = &buildconfig.HTMLOptions{Title: "Countries", Filename: "index.html"}
	p.tmpl, _ = parseShell("")
	p.metadata = &BuildMetadata{
		Outputs: map[string]OutputInfo{
			"dist/main.AAAAAAAA.js": {EntryPoint: "src/Index.bs.js"},
		},
	}

	var sb strings.Builder
	require.NoError(t, p.RenderShell(&sb))

	assert.Contains(t, sb.String(), `<script src="main.AAAAAAAA.js"></script>`)
	assert.NotContains(t, sb.String(), "modulepreload")
}

func TestPipeline_Build_development(t *testing.T) {
	root := setupApp(t)
	p := newPipeline(t, buildconfig.Resolve(root, buildconfig.Development))

	require.NoError(t, p.Build(context.Background()))

	dist := filepath.Join(root, "dist")
	_, entry, err := p.LoadScripts()
	require.NoError(t, err)
	require.Regexp(t, hashedMain, entry)

	bundle, err := os.ReadFile(filepath.Join(dist, entry))
	require.NoError(t, err)
	assert.Contains(t, string(bundle), "var App")

	html, err := os.ReadFile(filepath.Join(dist, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Countries</title>")
	assert.Contains(t, string(html), `<div id="root"></div>`)
	assert.Contains(t, string(html), `<script src="`+entry+`"></script>`)

	_, err = os.Stat(filepath.Join(dist, MetafileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dist, ChunkPlanName))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPipeline_Build_production(t *testing.T) {
	root := setupApp(t)
	p := newPipeline(t, buildconfig.Resolve(root, buildconfig.Production))

	require.NoError(t, p.Build(context.Background()))

	dist := filepath.Join(root, "dist")
	_, entry, err := p.LoadScripts()
	require.NoError(t, err)
	require.Regexp(t, hashedMain, entry)

	html, err := os.ReadFile(filepath.Join(dist, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), `<script type="module">`)
	assert.Contains(t, string(html), entry)

	plan, err := p.ChunkPlan()
	require.NoError(t, err)

	tiny, ok := plan.Chunk("npm.tiny-pkg")
	require.True(t, ok)
	assert.Equal(t, "vendor", tiny.Group)
	assert.Equal(t, []string{"node_modules/tiny-pkg/index.js"}, tiny.Modules)
	assert.NotEmpty(t, tiny.Outputs)

	greet, ok := plan.Chunk("npm.acmegreet")
	require.True(t, ok)
	assert.Equal(t, []string{"node_modules/@acme/greet/index.js"}, greet.Modules)

	data, err := os.ReadFile(filepath.Join(dist, ChunkPlanName))
	require.NoError(t, err)
	var written ChunkPlan
	require.NoError(t, json.Unmarshal(data, &written))
	require.Equal(t, plan, &written)
}

func TestPipeline_Watch_rebuildsOnChange(t *testing.T) {
	root := setupApp(t)
	p := newPipeline(t, buildconfig.Resolve(root, buildconfig.Development))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- p.Watch(ctx)
	}()

	var first string
	require.Eventually(t, func() bool {
		_, entry, err := p.LoadScripts()
		if err != nil {
			return false
		}
		first = entry
		return true
	}, 10*time.Second, 50*time.Millisecond)
	require.Regexp(t, hashedMain, first)

	src := filepath.Join(root, "src", "Index.bs.js")
	f, err := os.OpenFile(src, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("\nexport const rebuilt = true;\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	indexPath := filepath.Join(root, "dist", "index.html")
	var second string
	require.Eventually(t, func() bool {
		_, entry, err := p.LoadScripts()
		if err != nil || entry == first {
			return false
		}
		html, err := os.ReadFile(indexPath)
		if err != nil || !strings.Contains(string(html), `<script src="`+entry+`"></script>`) {
			return false
		}
		second = entry
		return true
	}, 15*time.Second, 50*time.Millisecond)
	require.Regexp(t, hashedMain, second)

	bundle, err := os.ReadFile(filepath.Join(root, "dist", second))
	require.NoError(t, err)
	assert.Contains(t, string(bundle), "rebuilt")

	cancel()
	select {
	case err := <-watchErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestPipeline_Watch_invalidOptions(t *testing.T) {
	p := newPipeline(t, buildconfig.Resolve(setupApp(t), buildconfig.Development))
	p.config.Output.LibraryTarget = "commonjs2"

	require.ErrorContains(t, p.Watch(context.Background()), "unsupported library target")
}

func TestPipeline_Build_syntaxError(t *testing.T) {
	root := setupApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "Index.bs.js"), []byte("export const = ;"), 0o600))

	p := newPipeline(t, buildconfig.Resolve(root, buildconfig.Development))
	err := p.Build(context.Background())
	require.ErrorContains(t, err, "esbuild failed with errors")

	_, err = os.Stat(filepath.Join(root, "dist", "index.html"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPipeline_Build_cancelled(t *testing.T) {
	p := newPipeline(t, buildconfig.Resolve(setupApp(t), buildconfig.Development))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Build(ctx), context.Canceled)
}

func TestPipeline_Build_recordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := telemetry.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	p, err := New(buildconfig.Resolve(setupApp(t), buildconfig.Production), WithLogger(zerolog.Nop()), WithMetrics(metrics))
	require.NoError(t, err)
	require.NoError(t, p.Build(context.Background()))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	recorded := map[string]metricdata.Aggregation{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		recorded[m.Name] = m.Data
	}

	builds, ok := recorded["bundler.builds.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, builds.DataPoints, 1)
	require.Equal(t, int64(1), builds.DataPoints[0].Value)

	require.Contains(t, recorded, "bundler.builds.duration")
	require.Contains(t, recorded, "bundler.outputs.bytes")
	require.Contains(t, recorded, "bundler.vendor_chunks")
	require.NotContains(t, recorded, "bundler.builds.errors.total")
}
