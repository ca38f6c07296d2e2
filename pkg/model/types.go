package model

import "time"

// Kind separates the two memory domains: what the user felt versus what they
// liked to look at.
type Kind string

const (
	KindEmotion Kind = "emotion"
	KindStyle   Kind = "style"
)

// InteractionPayload is the raw input handed over by the web layer. It is
// validated and classified before anything durable happens.
type InteractionPayload struct {
	Content  string                 `json:"content" validate:"required,max=8192"`
	Source   string                 `json:"source" validate:"required,oneof=text image audio"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Classification is what an emotion/style classifier derives from a payload.
type Classification struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Vector     []float32 `json:"vector"`
}

// Observation is one recorded emotion or style measurement for a user.
// Immutable once stored; Seq increases monotonically per (user, kind).
type Observation struct {
	UserID     string    `json:"user_id"`
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       Kind      `json:"kind"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Vector     []float32 `json:"vector"`
}

// UserMemoryState is the derived per-user view: a histogram of observed
// labels plus the dominant one. It is always recomputable from the
// observation window and never persisted on its own.
type UserMemoryState struct {
	DominantLabel string         `json:"dominant_label"`
	Histogram     map[string]int `json:"histogram"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// Recommendation is a single ranked label suggestion.
type Recommendation struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// User mirrors a users row.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Artwork mirrors an artworks row.
type Artwork struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	EmotionLabel string    `json:"emotion_label"`
	StyleLabel   string    `json:"style_label"`
	Palette      []string  `json:"palette"`
	Narrative    string    `json:"narrative,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
