package buildconfig

import (
	"errors"
	"fmt"
	"path/filepath"
)

const (
	DefaultEntry         = "./src/Index.bs.js"
	DefaultOutputDir     = "dist"
	DefaultFilename      = "[name].[contenthash:8].js"
	DefaultLibrary       = "App"
	DefaultLibraryTarget = "var"
	DefaultTitle         = "Countries"
	DefaultViewport      = "width=device-width, initial-scale=1"
	DefaultTemplate      = "src/index.html"
	DefaultHTMLFilename  = "index.html"
	DefaultHost          = "localhost"
	DefaultPort          = 9000
	DefaultVendorMarker  = "node_modules"
	DefaultChunkPrefix   = "npm."

	// Unbounded disables a numeric limit in SplitChunks.
	Unbounded = -1
)

const (
	PluginHashedModuleIDs = "hashed-module-ids"
	PluginHTML            = "html"
)

var (
	ErrMissingEntry       = errors.New("entry is required")
	ErrRelativeOutputPath = errors.New("output path must be absolute")
	ErrOptimizationMode   = errors.New("optimization must be set if and only if mode is production")
	ErrInvalidPort        = errors.New("dev server port must be between 1 and 65535")
)

// Config is the record handed to the bundler and the dev server. It is built
// once per invocation and treated as read only afterwards.
type Config struct {
	// Context is the absolute project root, relative paths are resolved against it.
	Context      string        `json:"context" yaml:"context"`
	Entry        string        `json:"entry" yaml:"entry"`
	Output       Output        `json:"output" yaml:"output"`
	Plugins      []Plugin      `json:"plugins" yaml:"plugins"`
	Mode         Mode          `json:"mode" yaml:"mode"`
	DevServer    DevServer     `json:"devServer" yaml:"devServer"`
	Optimization *Optimization `json:"optimization,omitempty" yaml:"optimization,omitempty"`
}

type Output struct {
	Path          string `json:"path" yaml:"path"`
	Filename      string `json:"filename" yaml:"filename"`
	LibraryTarget string `json:"libraryTarget" yaml:"libraryTarget"`
	Library       string `json:"library" yaml:"library"`
}

// Plugin describes an extension applied by the bundler, in order.
type Plugin struct {
	Name string       `json:"name" yaml:"name"`
	HTML *HTMLOptions `json:"html,omitempty" yaml:"html,omitempty"`
}

type HTMLOptions struct {
	Title    string            `json:"title" yaml:"title"`
	Meta     map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	Template string            `json:"template,omitempty" yaml:"template,omitempty"`
	Filename string            `json:"filename" yaml:"filename"`
}

type DevServer struct {
	ContentBase string            `json:"contentBase" yaml:"contentBase"`
	Compress    bool              `json:"compress" yaml:"compress"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	Host        string            `json:"host" yaml:"host"`
	Port        int               `json:"port" yaml:"port"`
}

// Addr returns the host:port the dev server listens on.
func (d DevServer) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

type Optimization struct {
	RuntimeChunk string      `json:"runtimeChunk" yaml:"runtimeChunk"`
	SplitChunks  SplitChunks `json:"splitChunks" yaml:"splitChunks"`
}

type SplitChunks struct {
	Chunks string `json:"chunks" yaml:"chunks"`
	// MaxInitialRequests is Unbounded or a positive limit.
	MaxInitialRequests int                   `json:"maxInitialRequests" yaml:"maxInitialRequests"`
	MinSize            int                   `json:"minSize" yaml:"minSize"`
	CacheGroups        map[string]CacheGroup `json:"cacheGroups" yaml:"cacheGroups"`
}

// HTMLPlugin returns the first html plugin descriptor, if any.
func (c Config) HTMLPlugin() (*HTMLOptions, bool) {
	for _, p := range c.Plugins {
		if p.Name == PluginHTML && p.HTML != nil {
			return p.HTML, true
		}
	}
	return nil, false
}

// Abs resolves p against the project root.
func (c Config) Abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Context, p)
}

// Validate checks the invariants the bundler and dev server rely on.
func (c Config) Validate() error {
	if c.Entry == "" {
		return ErrMissingEntry
	}

	if !filepath.IsAbs(c.Output.Path) {
		return fmt.Errorf("%w: %q", ErrRelativeOutputPath, c.Output.Path)
	}

	tmpl, err := ParseFilename(c.Output.Filename)
	if err != nil {
		return fmt.Errorf("invalid output filename: %w", err)
	}
	if !tmpl.HasName || tmpl.HashLength != ContentHashLength {
		return fmt.Errorf("output filename %q must contain [name] and [contenthash:%d]", c.Output.Filename, ContentHashLength)
	}

	if err := c.Mode.validate(); err != nil {
		return err
	}
	if (c.Mode == Production) != (c.Optimization != nil) {
		return ErrOptimizationMode
	}

	if c.DevServer.Port < 1 || c.DevServer.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.DevServer.Port)
	}

	for _, p := range c.Plugins {
		switch p.Name {
		case PluginHashedModuleIDs:
		case PluginHTML:
			if p.HTML == nil || p.HTML.Filename == "" {
				return errors.New("html plugin requires an output filename")
			}
		default:
			return fmt.Errorf("unknown plugin %q", p.Name)
		}
	}

	return nil
}
