// Package templates embeds the HTML documents rendered by the intake pipeline. Every template is
// self-contained: styles are inline and images must already be data URIs.
package templates

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed *.html
var files embed.FS

// Names of the embedded templates.
const (
	Document     = "document.html"
	Notification = "notification.html"
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"lines": func(s string) []string {
		return strings.Split(strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n"), "\n")
	},
	"inc": func(i int) int { return i + 1 },
}

// Parse loads one embedded template by name.
func Parse(name string) (*template.Template, error) {
	return template.New(name).Funcs(funcs).ParseFS(files, name)
}
