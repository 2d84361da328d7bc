package chat

import (
	"context"

	"google.golang.org/genai"
)

// Gemini model IDs that handle inline video.
//
// | Model Name            | API Model ID          | Use Case                      |
// |-----------------------|-----------------------|-------------------------------|
// | Gemini 2.5 Pro        | gemini-2.5-pro        | Best editorial quality        |
// | Gemini 2.5 Flash      | gemini-2.5-flash      | Faster, cheaper drafts        |
// | Gemini 2.5 Flash-Lite | gemini-2.5-flash-lite | High-throughput, lowest cost  |
const (
	ModelGemini25Pro       = "gemini-2.5-pro"
	ModelGemini25Flash     = "gemini-2.5-flash"
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// DefaultModelName is used when the configuration names no model.
const DefaultModelName = ModelGemini25Pro

// ContentModel is the part of *genai.Models the generator calls. Tests
// substitute a fake.
type ContentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ ContentModel = (*genai.Models)(nil)
