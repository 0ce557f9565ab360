package buildconfig

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// ContentHashLength is the content hash length the bundler can produce.
const ContentHashLength = 8

// FilenameTemplate is a parsed output filename such as "[name].[contenthash:8].js".
type FilenameTemplate struct {
	Raw        string
	HasName    bool
	HasHash    bool
	HashLength int
	// Ext is the extension after the last placeholder, e.g. ".js".
	Ext string
}

// ParseFilename parses the placeholders of an output filename template.
// Supported placeholders are [name], [contenthash] and [contenthash:N].
func ParseFilename(raw string) (FilenameTemplate, error) {
	t := FilenameTemplate{Raw: raw}
	rest := raw

	for {
		start := strings.IndexByte(rest, '[')
		if start == -1 {
			break
		}
		end := strings.IndexByte(rest[start:], ']')
		if end == -1 {
			return t, fmt.Errorf("unterminated placeholder in %q", raw)
		}
		placeholder := rest[start+1 : start+end]
		rest = rest[start+end+1:]

		key, arg, hasArg := strings.Cut(placeholder, ":")
		switch key {
		case "name":
			if hasArg {
				return t, fmt.Errorf("[name] takes no argument in %q", raw)
			}
			t.HasName = true
		case "contenthash":
			if t.HasHash {
				return t, fmt.Errorf("duplicate [contenthash] in %q", raw)
			}
			t.HasHash = true
			t.HashLength = ContentHashLength
			if hasArg {
				n, err := strconv.Atoi(arg)
				if err != nil || n <= 0 {
					return t, fmt.Errorf("invalid hash length %q in %q", arg, raw)
				}
				t.HashLength = n
			}
		default:
			return t, fmt.Errorf("unsupported placeholder [%s] in %q", placeholder, raw)
		}
	}

	tail := raw
	if i := strings.LastIndexByte(raw, ']'); i != -1 {
		tail = raw[i+1:]
	}
	t.Ext = path.Ext(tail)

	return t, nil
}

// Pattern rewrites the template into bundler placeholder syntax, dropping the
// extension: "[name].[contenthash:8].js" becomes "[name].[hash]".
func (t FilenameTemplate) Pattern() (string, error) {
	if t.HasHash && t.HashLength != ContentHashLength {
		return "", fmt.Errorf("content hash length must be %d, got %d", ContentHashLength, t.HashLength)
	}

	s := strings.TrimSuffix(t.Raw, t.Ext)
	s = strings.ReplaceAll(s, fmt.Sprintf("[contenthash:%d]", t.HashLength), "[hash]")
	s = strings.ReplaceAll(s, "[contenthash]", "[hash]")

	return s, nil
}
