// Package summarize turns extracted content into natural-language summaries
// through the language-model backend. One method per supported file type.
package summarize

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	pdfutil "github.com/pa-tiq/synthia-api/internal/pdf"
)

// Generator is the slice of the LLM client the summarizers need.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, images []string) (string, error)
}

// Summarizer routes content to the right model with the right prompt. The
// target language is carried inside the prompt; translation model selection
// stays out of this layer.
type Summarizer struct {
	llm         Generator
	textModel   string
	visionModel string
}

// New constructs a Summarizer.
func New(llm Generator, textModel, visionModel string) *Summarizer {
	return &Summarizer{
		llm:         llm,
		textModel:   textModel,
		visionModel: visionModel,
	}
}

// Text summarizes plain text.
func (s *Summarizer) Text(ctx context.Context, text, targetLanguage string) (string, error) {
	prompt := fmt.Sprintf(
		"Please summarize the following text concisely. There's no need to emit an opinion. "+
			"Just summarize it, extracting the key points of the text. "+
			"The summary must be in the language %s.\n\n%s",
		targetLanguage, text)
	summary, err := s.llm.Generate(ctx, s.textModel, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("generate text summary: %w", err)
	}
	return summary, nil
}

// PDF extracts the text of a PDF and summarizes it.
func (s *Summarizer) PDF(ctx context.Context, data []byte, targetLanguage string) (string, error) {
	text, err := pdfutil.ExtractText(data)
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return s.Text(ctx, text, targetLanguage)
}

// Image describes and summarizes an image through the vision model.
func (s *Summarizer) Image(ctx context.Context, data []byte, targetLanguage string) (string, error) {
	prompt := fmt.Sprintf(
		"Please describe this image in detail and summarize its key elements. "+
			"The description must be in the language %s.", targetLanguage)
	encoded := base64.StdEncoding.EncodeToString(data)
	summary, err := s.llm.Generate(ctx, s.visionModel, prompt, []string{encoded})
	if err != nil {
		return "", fmt.Errorf("generate image summary: %w", err)
	}
	return summary, nil
}
