package assets

import (
	"strings"
	"testing"
)

func TestRenderEditorialPrompt(t *testing.T) {
	prompt := RenderEditorialPrompt("דנה כהן", "15.10.2025")

	wantAttribution := "כתבתו/כתבתה של דנה כהן מתוך מהדורת כאן חדשות, 15.10.2025."
	if got := strings.Count(prompt, wantAttribution); got < 2 {
		t.Errorf("attribution sentence appears %d times, want at least 2", got)
	}
	for _, field := range []string{`"summary"`, `"titles"`, `"descriptions"`, `"thumbnails"`, `"timestamp"`, "MM:SS.mmm"} {
		if !strings.Contains(prompt, field) {
			t.Errorf("prompt missing %s", field)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Error("prompt contains unrendered template actions")
	}
}

func TestRenderEditorialPromptVerbatim(t *testing.T) {
	// text/template does not escape, so names with markup survive as typed.
	prompt := RenderEditorialPrompt(`<b>O'Brien & "Co"</b>`, "2025-10-15")
	if !strings.Contains(prompt, `<b>O'Brien & "Co"</b>`) {
		t.Error("reporter name was altered")
	}
}
