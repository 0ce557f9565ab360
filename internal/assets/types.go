package assets

import (
	"errors"
	"fmt"
	"html/template"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
	"github.com/wolfeidau/countries-bundler/internal/telemetry"
)

const (
	// MetafileName is written next to the bundles after every build.
	MetafileName = "meta.json"
	// ChunkPlanName holds the vendor chunk plan of production builds.
	ChunkPlanName = "chunks.json"

	mainChunkName = "main"
)

type BuildMetadata struct {
	Inputs  map[string]InputInfo  `json:"inputs"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type InputInfo struct {
	Bytes int `json:"bytes"`
}

type OutputInfo struct {
	EntryPoint string                 `json:"entryPoint"`
	Imports    []ImportInfo           `json:"imports"`
	Inputs     map[string]OutputInput `json:"inputs"`
	Bytes      int                    `json:"bytes"`
}

type OutputInput struct {
	BytesInOutput int `json:"bytesInOutput"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// Pipeline turns a resolved build configuration into esbuild builds and keeps
// the metadata of the most recent successful build.
type Pipeline struct {
	config   buildconfig.Config
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tmpl     *template.Template
	html     *buildconfig.HTMLOptions
	metadata *BuildMetadata
	plan     *ChunkPlan
	started  time.Time
	mu       sync.RWMutex
}

type Option func(*Pipeline)

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New validates the configuration and loads the HTML template named by the
// html plugin, if one is configured.
func New(config buildconfig.Config, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid build configuration: %w", err)
	}

	p := &Pipeline{
		config:  config,
		logger:  log.Logger,
		metrics: telemetry.GetMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}

	html, ok := config.HTMLPlugin()
	if !ok {
		return p, nil
	}

	var source string
	if html.Template != "" {
		data, err := os.ReadFile(config.Abs(html.Template))
		if err != nil {
			return nil, fmt.Errorf("failed to read html template: %w", err)
		}
		source = string(data)
	}

	tmpl, err := parseShell(source)
	if err != nil {
		return nil, err
	}

	p.tmpl = tmpl
	p.html = html
	return p, nil
}

// Config returns the configuration the pipeline was created with.
func (p *Pipeline) Config() buildconfig.Config {
	return p.config
}

// Metadata returns the metadata of the last successful build.
func (p *Pipeline) Metadata() (*BuildMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, errNotBuilt
	}
	return p.metadata, nil
}

// ChunkPlan returns the vendor chunk plan of the last production build.
func (p *Pipeline) ChunkPlan() (*ChunkPlan, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.plan == nil {
		return nil, errors.New("no chunk plan, build in production mode first")
	}
	return p.plan, nil
}

var errNotBuilt = errors.New("assets not built yet, call Build() first")
