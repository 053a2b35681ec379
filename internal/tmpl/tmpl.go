/*
Package tmpl renders the names fwrelease derives from a release and its
version: tags, archive files and bundle layout prefixes.
*/
package tmpl

import (
	"bytes"
	"fmt"
	"maps"
	"strings"
	"text/template"
)

const (
	TagName       = "{{ .Release }}_{{ .Version }}"
	TagMessage    = "{{ .Release }} version {{ .Version }}"
	TagRange      = "{{ .Release }}_{{ .Prev }}..{{ .Release }}_{{ .Version }}"
	RogueArchive  = "rogue_{{ .Release }}_{{ .Version }}.zip"
	CPSWArchive   = "cpsw_{{ .Release }}_{{ .Version }}.tar.gz"
	ChecksumFile  = "checksums_{{ .Release }}_{{ .Version }}.txt"
	CPSWBaseDir   = "{{ .Release }}_project.yaml"
	SetupFileName = "setup.py"
)

var funcs = template.FuncMap{
	"tolower":    strings.ToLower,
	"toupper":    strings.ToUpper,
	"trimprefix": strings.TrimPrefix,
	"join":       strings.Join,
}

// Context holds the values a name template can reference. Release and
// Version are always set; Prev only once the previous version is known.
type Context struct {
	fields map[string]any
}

func New(release, version string) *Context {
	return &Context{fields: map[string]any{
		"Release": release,
		"Version": version,
	}}
}

// Apply renders text against the context
func (c *Context) Apply(text string) (string, error) {
	t, err := template.New("name").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", text, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, c.fields); err != nil {
		return "", fmt.Errorf("failed to render %q: %w", text, err)
	}
	return buf.String(), nil
}

func (c *Context) Set(key string, value any) {
	c.fields[key] = value
}

// With returns a copy of the context with key set, leaving c unchanged
func (c *Context) With(key string, value any) *Context {
	fields := maps.Clone(c.fields)
	fields[key] = value
	return &Context{fields: fields}
}
