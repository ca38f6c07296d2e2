// Package classify defines the emotion/style classifier contract and a
// deterministic local implementation so the system runs without external
// model services.
package classify

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/neurocanvas/neurocanvas/pkg/model"
)

// Classifier turns a raw interaction payload into a labeled feature vector.
// Implementations may call out to real model services; failures surface as
// ErrClassificationUnavailable at the memory bank boundary.
type Classifier interface {
	Classify(ctx context.Context, payload model.InteractionPayload) (model.Classification, error)
}

// emotionLexicon maps trigger words to emotion labels.
var emotionLexicon = map[string]string{
	"happy": "joy", "joy": "joy", "delighted": "joy", "excited": "joy", "love": "joy",
	"sad": "sadness", "down": "sadness", "grief": "sadness", "lonely": "sadness",
	"angry": "anger", "furious": "anger", "annoyed": "anger", "rage": "anger",
	"afraid": "fear", "scared": "fear", "anxious": "fear", "worried": "fear",
	"surprised": "surprise", "shocked": "surprise", "amazed": "surprise",
	"calm": "calm", "peaceful": "calm", "relaxed": "calm", "serene": "calm",
}

// styleLexicon maps trigger words to artistic style labels.
var styleLexicon = map[string]string{
	"impressionist": "impressionist", "monet": "impressionist", "soft": "impressionist",
	"abstract": "abstract", "geometric": "abstract", "shapes": "abstract",
	"minimal": "minimalist", "minimalist": "minimalist", "clean": "minimalist",
	"surreal": "surrealist", "dream": "surrealist", "dali": "surrealist",
	"vivid": "expressionist", "bold": "expressionist", "intense": "expressionist",
	"dark": "noir", "shadow": "noir", "night": "noir",
}

// LexiconClassifier is a lightweight keyword classifier with a hashed feature
// vector. It is deterministic: the same payload always yields the same label,
// confidence, and vector. Replace with a real classifier service when one is
// wired in.
type LexiconClassifier struct {
	kind model.Kind
	dim  int
}

// NewLexicon builds a classifier for the given memory domain producing
// vectors of the given dimension.
func NewLexicon(kind model.Kind, dim int) *LexiconClassifier {
	if dim <= 0 {
		dim = 768
	}
	return &LexiconClassifier{kind: kind, dim: dim}
}

// Classify scans the payload for lexicon hits. The label with the most hits
// wins; word-count ties go to the lexicographically smaller label. Payloads
// with no hits fall back to a neutral label at low confidence.
func (c *LexiconClassifier) Classify(_ context.Context, payload model.InteractionPayload) (model.Classification, error) {
	lexicon := emotionLexicon
	fallback := "neutral"
	if c.kind == model.KindStyle {
		lexicon = styleLexicon
		fallback = "abstract"
	}

	hits := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(payload.Content)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if label, ok := lexicon[word]; ok {
			hits[label]++
		}
	}

	label, best := fallback, 0
	for candidate, n := range hits {
		if n > best || (n == best && best > 0 && candidate < label) {
			label, best = candidate, n
		}
	}

	confidence := 0.4
	if best > 0 {
		// More corroborating words, more confidence, capped below certainty.
		confidence = math.Min(0.6+0.1*float64(best), 0.95)
	}

	return model.Classification{
		Label:      label,
		Confidence: confidence,
		Vector:     c.vectorFor(label, payload.Content),
	}, nil
}

// vectorFor hashes label and content into a normalized pseudo-embedding.
// The label hash dominates so observations sharing a label land near each
// other under cosine distance.
func (c *LexiconClassifier) vectorFor(label, content string) []float32 {
	labelPart := hashVector(label, c.dim)
	contentPart := hashVector(content, c.dim)

	vec := make([]float32, c.dim)
	var sum float64
	for i := range vec {
		v := 0.8*labelPart[i] + 0.2*contentPart[i]
		vec[i] = float32(v)
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// hashVector spreads sha256 bits across dimensions.
func hashVector(text string, dim int) []float64 {
	if text == "" {
		text = "empty"
	}
	hash := sha256.Sum256([]byte(text))
	vec := make([]float64, dim)
	for i := 0; i < dim; i++ {
		chunk := binary.LittleEndian.Uint16(hash[(i*2)%30:])
		vec[i] = float64(chunk%1000)/500.0 - 1.0
	}
	return vec
}

var _ Classifier = (*LexiconClassifier)(nil)
