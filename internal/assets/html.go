package assets

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"slices"
	"strings"
)

//go:embed default.html
var defaultShell string

// Templates may include these to place the meta tags and script tags.
const shellPartials = `
{{- define "meta" -}}
{{ range .Meta }}<meta name="{{ .Name }}" content="{{ .Content }}">
{{ end }}
{{- end -}}
{{- define "scripts" -}}
{{ if .Module -}}
{{ range .Preloads }}<link rel="modulepreload" href="{{ . }}">
{{ end -}}
<script type="module">import * as lib from {{ .EntryImport }}; window[{{ .Library }}] = lib;</script>
{{- else -}}
<script src="{{ .Entry }}"></script>
{{- end }}
{{- end -}}`

const shellName = "shell"

type MetaTag struct {
	Name    string
	Content string
}

// ShellData is passed to the HTML template.
type ShellData struct {
	Title   string
	Meta    []MetaTag
	Library string
	// Module is set for ES module output, where scripts are imported rather
	// than loaded with classic script tags.
	Module      bool
	Entry       string
	EntryImport string
	Preloads    []string
	Scripts     []string
}

func parseShell(source string) (*template.Template, error) {
	if source == "" {
		source = defaultShell
	}

	tmpl, err := template.New("partials").Parse(shellPartials)
	if err != nil {
		return nil, err
	}

	if _, err := tmpl.New(shellName).Parse(source); err != nil {
		return nil, fmt.Errorf("failed to parse html template: %w", err)
	}

	return tmpl, nil
}

// ShellData assembles the template data from the last build.
func (p *Pipeline) ShellData() (ShellData, error) {
	if p.html == nil {
		return ShellData{}, fmt.Errorf("no html plugin configured")
	}

	scripts, entry, err := p.LoadScripts()
	if err != nil {
		return ShellData{}, err
	}

	data := ShellData{
		Title:       p.html.Title,
		Library:     p.config.Output.Library,
		Module:      p.bridgesLibrary(),
		Entry:       entry,
		EntryImport: "./" + entry,
		Preloads:    scripts[1:],
		Scripts:     scripts,
	}

	for name, content := range p.html.Meta {
		data.Meta = append(data.Meta, MetaTag{Name: name, Content: content})
	}
	slices.SortFunc(data.Meta, func(a, b MetaTag) int {
		return strings.Compare(a.Name, b.Name)
	})

	return data, nil
}

// RenderShell writes the HTML page referencing the built scripts.
func (p *Pipeline) RenderShell(w io.Writer) error {
	data, err := p.ShellData()
	if err != nil {
		return err
	}

	if err := p.tmpl.ExecuteTemplate(w, shellName, data); err != nil {
		return fmt.Errorf("failed to render html template: %w", err)
	}
	return nil
}
