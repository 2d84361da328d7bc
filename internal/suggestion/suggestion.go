// Package suggestion turns free-form model output into editorial
// suggestions. Parse never fails: text that is not a JSON object comes back
// as Raw so the caller can still show it.
package suggestion

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/jsonutil"
)

// Suggestion is either *Structured or Raw.
type Suggestion interface {
	isSuggestion()
}

// ThumbnailMoment is a frame the model proposes as a thumbnail.
type ThumbnailMoment struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// Structured holds whichever of the four fields the model returned with the
// expected type. Fields it left out, or sent with another type, stay empty
// and are omitted on the wire.
type Structured struct {
	Summary      string            `json:"summary,omitempty"`
	Titles       []string          `json:"titles,omitempty"`
	Descriptions []string          `json:"descriptions,omitempty"`
	Thumbnails   []ThumbnailMoment `json:"thumbnails,omitempty"`
}

// Raw is the model text as-is, for responses without a usable JSON object.
type Raw struct {
	Text string
}

func (*Structured) isSuggestion() {}
func (Raw) isSuggestion()         {}

// MarshalJSON encodes Raw the way the client expects it: {"rawContent": ...}.
func (r Raw) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RawContent string `json:"rawContent"`
	}{r.Text})
}

// Parse reads the span between the first '{' and the last '}' of raw. When
// that span is a JSON object the result is *Structured, otherwise Raw{raw}.
func Parse(raw string) Suggestion {
	fields, err := jsonutil.ParseObject(raw)
	if err != nil {
		log.Debug().Err(err).Int("length", len(raw)).Msg("Model response is not a JSON object, returning raw text")
		return Raw{Text: raw}
	}

	s := &Structured{}
	var present []string
	if v, ok := jsonutil.DecodeField[string](fields, "summary"); ok {
		s.Summary = v
		present = append(present, "summary")
	}
	if v, ok := jsonutil.DecodeField[[]string](fields, "titles"); ok {
		s.Titles = v
		present = append(present, "titles")
	}
	if v, ok := jsonutil.DecodeField[[]string](fields, "descriptions"); ok {
		s.Descriptions = v
		present = append(present, "descriptions")
	}
	if v, ok := jsonutil.DecodeField[[]ThumbnailMoment](fields, "thumbnails"); ok {
		s.Thumbnails = v
		present = append(present, "thumbnails")
	}

	log.Debug().
		Strs("fields", present).
		Int("titles", len(s.Titles)).
		Int("descriptions", len(s.Descriptions)).
		Int("thumbnails", len(s.Thumbnails)).
		Msg("Model response parsed")
	return s
}
