package kml

import (
	"errors"
	"html/template"
	"io"
)

var debugPage = template.Must(template.New("debug").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: monospace">
{{- if .Err}}
<span style="background: #d6002e; color: white; font-family: Arial;">Kml error: {{.Err}}</span><hr>
{{- end}}
{{- range .Lines}}
{{.}}<br>
{{- end}}
<pre>{{printf "%s" .Body}}</pre>
</body></html>
`))

type debugData struct {
	Title string
	Err   string
	Lines []string
	Body  []byte
}

// RenderDebug writes the human-readable rendering of a KML body: the
// diagnostic lines on top, the escaped document below.
func RenderDebug(w io.Writer, title string, lines []string, body []byte) error {
	return debugPage.Execute(w, debugData{Title: title, Lines: lines, Body: body})
}

// RenderAssemblyError writes the diagnostic page for a failed assembly: the
// parser error and the raw output that caused it.
func RenderAssemblyError(w io.Writer, title string, err error) error {
	d := debugData{Title: title, Err: err.Error()}
	var ae *AssemblyError
	if errors.As(err, &ae) {
		d.Body = ae.Raw
	}
	return debugPage.Execute(w, d)
}
