package buildconfig

import (
	"path"
	"strings"
)

// CacheGroup assigns every module installed under the Test directory to a
// chunk named after the package that owns it.
type CacheGroup struct {
	// Test is the vendor directory marker, e.g. "node_modules".
	Test   string `json:"test" yaml:"test"`
	Prefix string `json:"prefix" yaml:"prefix"`
}

// Matches reports whether modulePath lies inside the vendor directory.
func (g CacheGroup) Matches(modulePath string) bool {
	_, ok := PackageName(modulePath, g.Test)
	return ok
}

// ChunkName returns the chunk modulePath belongs to, e.g. "npm.lodash" for
// node_modules/lodash/index.js and "npm.scopepkg" for node_modules/@scope/pkg.
func (g CacheGroup) ChunkName(modulePath string) (string, bool) {
	name, ok := PackageName(modulePath, g.Test)
	if !ok {
		return "", false
	}

	// some servers reject '@' in URLs
	name = strings.ReplaceAll(name, "@", "")
	name = strings.ReplaceAll(name, "/", "")

	return g.Prefix + name, true
}

// moduleExts are file extensions that mark a final path segment as a module
// file rather than a package directory. Package names such as "socket.io"
// keep their dots.
var moduleExts = map[string]bool{
	".js": true, ".mjs": true, ".cjs": true, ".jsx": true,
	".ts": true, ".mts": true, ".cts": true, ".tsx": true,
	".json": true, ".css": true, ".wasm": true, ".node": true, ".map": true,
}

// PackageName extracts the package owning modulePath from the segments that
// follow the last marker segment. Scoped packages ("@scope/pkg") span two
// segments and are returned joined by "/". Both '/' and '\' separate segments.
//
// A module file placed directly inside a marker directory belongs to the
// package enclosing that directory, or to no package at the top level.
func PackageName(modulePath, marker string) (string, bool) {
	if marker == "" {
		return "", false
	}

	segments := strings.FieldsFunc(modulePath, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	last := len(segments) - 1

	for idx := last - 1; idx >= 0; idx-- {
		if segments[idx] != marker {
			continue
		}
		name := segments[idx+1]
		if idx+1 == last && moduleExts[path.Ext(name)] {
			continue
		}
		if strings.HasPrefix(name, "@") && idx+2 <= last {
			name += "/" + segments[idx+2]
		}
		return name, true
	}

	return "", false
}
