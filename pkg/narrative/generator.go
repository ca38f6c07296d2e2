// Package narrative defines the narrative generation collaborator contract
// and a deterministic template default standing in for an external language
// model.
package narrative

import (
	"context"
	"fmt"
)

// Request describes the artwork the narrative should accompany.
type Request struct {
	Title        string
	EmotionLabel string
	StyleLabel   string
	Style        string // narrative voice: poetic, reflective, playful
}

// Generator produces narrative text for an artwork.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var voices = map[string]string{
	"poetic":     "In %q, %s finds its color: a %s field where the feeling settles and stays.",
	"reflective": "%q began as %s. Rendered in a %s manner, it asks what that moment meant.",
	"playful":    "Meet %q! Equal parts %s and %s, and entirely unapologetic about it.",
}

// Template fills a fixed voice template from the request. Same request,
// same narrative.
type Template struct{}

// NewTemplate returns the default local narrative generator.
func NewTemplate() *Template { return &Template{} }

// Generate renders the narrative. Unknown voices fall back to poetic.
func (g *Template) Generate(_ context.Context, req Request) (string, error) {
	emotion := req.EmotionLabel
	if emotion == "" {
		emotion = "something unnamed"
	}
	style := req.StyleLabel
	if style == "" {
		style = "abstract"
	}
	title := req.Title
	if title == "" {
		title = "Untitled"
	}

	tmpl, ok := voices[req.Style]
	if !ok {
		tmpl = voices["poetic"]
	}
	return fmt.Sprintf(tmpl, title, emotion, style), nil
}

var _ Generator = (*Template)(nil)
