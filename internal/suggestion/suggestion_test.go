package suggestion

import (
	"encoding/json"
	"testing"
)

const fullResponse = "```json\n" + `{
  "summary": "ראש הממשלה ביקר בצפון",
  "titles": ["כותרת א", "כותרת ב", "כותרת ג"],
  "descriptions": ["תיאור ראשון. כתבתה של דנה מתוך מהדורת כאן חדשות, 1.1.2025.", "תיאור שני."],
  "thumbnails": [
    {"timestamp": "00:12.500", "description": "לחיצת ידיים"},
    {"timestamp": "02:15.750", "description": "נאום"}
  ]
}` + "\n```"

func TestParseStructured(t *testing.T) {
	got, ok := Parse(fullResponse).(*Structured)
	if !ok {
		t.Fatalf("expected *Structured, got %T", Parse(fullResponse))
	}
	if got.Summary != "ראש הממשלה ביקר בצפון" {
		t.Errorf("Summary = %q", got.Summary)
	}
	if len(got.Titles) != 3 || got.Titles[2] != "כותרת ג" {
		t.Errorf("Titles = %v", got.Titles)
	}
	if len(got.Descriptions) != 2 {
		t.Errorf("Descriptions = %v", got.Descriptions)
	}
	if len(got.Thumbnails) != 2 || got.Thumbnails[1] != (ThumbnailMoment{Timestamp: "02:15.750", Description: "נאום"}) {
		t.Errorf("Thumbnails = %+v", got.Thumbnails)
	}
}

func TestParseLenientFields(t *testing.T) {
	tests := []struct {
		name             string
		input            string
		wantSummary      string
		wantTitles       int
		wantDescriptions int
		wantThumbnails   int
	}{
		{"empty object", `{}`, "", 0, 0, 0},
		{"only summary", `Result: {"summary":"s"} done`, "s", 0, 0, 0},
		{"wrong typed titles", `{"summary":"s","titles":"not a list","descriptions":["d"]}`, "s", 0, 1, 0},
		{"unknown fields ignored", `{"headline":"x","titles":["a","b","c"]}`, "", 3, 0, 0},
		{"bad thumbnails", `{"thumbnails":[1,2]}`, "", 0, 0, 0},
		{"null field", `{"summary":null,"thumbnails":[{"timestamp":"00:01.000"}]}`, "", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Parse(tt.input).(*Structured)
			if !ok {
				t.Fatalf("expected *Structured for %q", tt.input)
			}
			if s.Summary != tt.wantSummary || len(s.Titles) != tt.wantTitles ||
				len(s.Descriptions) != tt.wantDescriptions || len(s.Thumbnails) != tt.wantThumbnails {
				t.Errorf("got %+v", s)
			}
		})
	}
}

// A list with any element of the wrong type is dropped as a whole rather
// than passed through, and the field then stays off the wire.
func TestParseDropsMixedTypeList(t *testing.T) {
	s, ok := Parse(`{"summary":"s","titles":["a",2]}`).(*Structured)
	if !ok {
		t.Fatal("expected *Structured")
	}
	if s.Titles != nil {
		t.Errorf("Titles = %v, want nil", s.Titles)
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatal(err)
	}
	if _, present := wire["titles"]; present {
		t.Errorf("titles on the wire: %s", b)
	}
	if wire["summary"] != "s" {
		t.Errorf("summary = %v", wire["summary"])
	}
}

func TestParseFallsBackToRaw(t *testing.T) {
	inputs := []string{
		"",
		"המודל לא החזיר JSON",
		`{"summary": "unterminated`,
		`{"summary": "a",}`,
		`} backwards {`,
		`{"a": 1} and then {"b": 2}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got := Parse(in)
			raw, ok := got.(Raw)
			if !ok {
				t.Fatalf("expected Raw, got %T", got)
			}
			if raw.Text != in {
				t.Errorf("Raw.Text = %q, want the input unchanged", raw.Text)
			}
		})
	}
}

func TestWireFormat(t *testing.T) {
	data, err := json.Marshal(Raw{Text: "plain text"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"rawContent":"plain text"}` {
		t.Errorf("Raw JSON = %s", data)
	}

	data, err = json.Marshal(Parse(`{"summary":"s"}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"summary":"s"}` {
		t.Errorf("Structured JSON = %s, absent fields should be omitted", data)
	}
}
