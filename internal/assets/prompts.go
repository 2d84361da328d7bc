// Package assets holds the prompt templates embedded into the binary.
//
// Templates live as text files under prompts/ so editors can change the
// wording without touching Go code.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed prompts/editorial.txt
var editorialTemplate string

// template.Must panics on a malformed template at program start rather than
// on the first request.
var editorialPromptTmpl = template.Must(template.New("editorial").Parse(editorialTemplate))

// EditorialPromptData is injected into the editorial prompt.
type EditorialPromptData struct {
	ReporterName string
	VideoDate    string
}

// RenderEditorialPrompt renders the Hebrew editorial prompt. The reporter
// name and date are inserted verbatim.
func RenderEditorialPrompt(reporterName, videoDate string) string {
	var buf bytes.Buffer
	// Execution cannot fail for this template and data type; on the off
	// chance it does, whatever rendered is still sent.
	_ = editorialPromptTmpl.Execute(&buf, EditorialPromptData{ReporterName: reporterName, VideoDate: videoDate})
	return buf.String()
}
