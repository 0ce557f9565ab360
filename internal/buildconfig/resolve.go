package buildconfig

import (
	"path/filepath"
)

// Resolve builds the configuration record for the project rooted at root.
// The development server block is the same in both modes; the optimization
// block is only attached for production.
func Resolve(root string, mode Mode) Config {
	root = filepath.Clean(root)
	outputPath := filepath.Join(root, DefaultOutputDir)

	cfg := Config{
		Context: root,
		Entry:   DefaultEntry,
		Output: Output{
			Path:          outputPath,
			Filename:      DefaultFilename,
			LibraryTarget: DefaultLibraryTarget,
			Library:       DefaultLibrary,
		},
		Plugins: []Plugin{
			// keeps chunk hashes stable when unrelated modules change
			{Name: PluginHashedModuleIDs},
			{Name: PluginHTML, HTML: &HTMLOptions{
				Title:    DefaultTitle,
				Meta:     map[string]string{"viewport": DefaultViewport},
				Template: DefaultTemplate,
				Filename: DefaultHTMLFilename,
			}},
		},
		Mode: Development,
		DevServer: DevServer{
			ContentBase: outputPath,
			Compress:    true,
			Headers: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Headers": "*",
			},
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}

	if mode == Development {
		return cfg
	}

	cfg.Mode = Production
	cfg.Optimization = &Optimization{
		RuntimeChunk: "single",
		SplitChunks: SplitChunks{
			Chunks:             "all",
			MaxInitialRequests: Unbounded,
			MinSize:            0,
			CacheGroups: map[string]CacheGroup{
				"vendor": {Test: DefaultVendorMarker, Prefix: DefaultChunkPrefix},
			},
		},
	}

	return cfg
}

// ResolveSignal is Resolve with the mode taken from a raw mode signal.
func ResolveSignal(root, signal string) Config {
	mode, _ := ParseMode(signal)
	return Resolve(root, mode)
}
