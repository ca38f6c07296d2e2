// Package artgen defines the art generation collaborator contract and a
// deterministic procedural default. Real diffusion-model backends implement
// the same interface and are wired in at startup.
package artgen

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// Request carries what the generator needs: the driving emotion, the style
// the user's artistic memory suggests, and free-form hints.
type Request struct {
	EmotionLabel string
	StyleLabel   string
	Intensity    float64 // 0..1, typically classification confidence
	Hints        []string
}

// Result is the generated artwork's parameters. Image synthesis itself
// happens in the external model; this core only deals in parameters.
type Result struct {
	Title       string
	Description string
	Palette     []string
	Seed        int64
}

// Generator produces artwork parameters from an emotional request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// palettes maps emotion labels to base color ramps.
var palettes = map[string][]string{
	"joy":      {"#ffd700", "#ff8c00", "#ff6f61", "#fff3b0"},
	"sadness":  {"#22577a", "#38a3a5", "#57cc99", "#2b2d42"},
	"anger":    {"#9d0208", "#d00000", "#e85d04", "#370617"},
	"fear":     {"#10002b", "#3c096c", "#5a189a", "#240046"},
	"surprise": {"#f72585", "#7209b7", "#4cc9f0", "#b5179e"},
	"calm":     {"#cce3de", "#a4c3b2", "#6b9080", "#eaf4f4"},
	"neutral":  {"#adb5bd", "#6c757d", "#dee2e6", "#495057"},
}

var titleMoods = map[string]string{
	"joy":      "Radiant",
	"sadness":  "Quiet",
	"anger":    "Burning",
	"fear":     "Shadowed",
	"surprise": "Sudden",
	"calm":     "Still",
	"neutral":  "Plain",
}

// Procedural derives palette, title, and a synthesis seed purely from the
// request, so the same emotional state always produces the same parameters.
type Procedural struct{}

// NewProcedural returns the default local generator.
func NewProcedural() *Procedural { return &Procedural{} }

// Generate builds artwork parameters without any external calls.
func (g *Procedural) Generate(_ context.Context, req Request) (Result, error) {
	emotion := req.EmotionLabel
	if emotion == "" {
		emotion = "neutral"
	}
	style := req.StyleLabel
	if style == "" {
		style = "abstract"
	}

	palette, ok := palettes[emotion]
	if !ok {
		palette = palettes["neutral"]
	}

	mood, ok := titleMoods[emotion]
	if !ok {
		mood = titleCase(emotion)
	}

	seedInput := emotion + "|" + style + "|" + strings.Join(req.Hints, ",")
	hash := sha256.Sum256([]byte(seedInput))
	seed := int64(binary.LittleEndian.Uint64(hash[:8]) & 0x7fffffffffffffff)

	return Result{
		Title:       fmt.Sprintf("%s %s Study", mood, titleCase(style)),
		Description: fmt.Sprintf("A %s composition shaped by %s.", style, emotion),
		Palette:     palette,
		Seed:        seed,
	}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var _ Generator = (*Procedural)(nil)
