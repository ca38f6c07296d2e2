package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/neurocanvas/neurocanvas/pkg/artgen"
	"github.com/neurocanvas/neurocanvas/pkg/metrics"
	"github.com/neurocanvas/neurocanvas/pkg/model"
	"github.com/neurocanvas/neurocanvas/pkg/narrative"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebSocket authenticates via a token query parameter (browsers cannot
// set Authorization headers on websocket upgrades) and hands the connection
// to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	userID, err := verifyToken(s.jwtSecret, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	s.hub.Serve(w, r, userID)
}

// handleAnalyzeEmotion ingests raw interaction data into the emotional
// memory and returns the resulting observation.
func (s *Server) handleAnalyzeEmotion(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var payload model.InteractionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.emotional.ProcessInteraction(r.Context(), userID, payload); err != nil {
		s.writeBankError(w, err)
		return
	}

	history, err := s.emotional.GetHistory(r.Context(), userID, 1, 0)
	if err != nil || len(history) == 0 {
		writeError(w, http.StatusInternalServerError, "observation not recorded")
		return
	}
	obs := history[0]

	s.emit(userID, "emotion_update", obs)
	writeJSON(w, http.StatusOK, obs)
}

// handleEmotionHistory returns the user's emotional observations, most
// recent first.
func (s *Server) handleEmotionHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	history, err := s.emotional.GetHistory(r.Context(), userID, limit, offset)
	if err != nil {
		s.writeBankError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"observations": history,
		"count":        len(history),
	})
}

type generateArtRequest struct {
	model.InteractionPayload
	Hints []string `json:"hints,omitempty"`
}

// handleGenerateArt records the interaction in the artistic memory, derives
// the dominant emotion and preferred style, and persists the generated
// artwork parameters.
func (s *Server) handleGenerateArt(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req generateArtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.artistic.ProcessInteraction(r.Context(), userID, req.InteractionPayload); err != nil {
		s.writeBankError(w, err)
		return
	}

	emotional, err := s.emotional.GetUserPatterns(r.Context(), userID)
	if err != nil {
		s.writeBankError(w, err)
		return
	}
	artistic, err := s.artistic.GetUserPatterns(r.Context(), userID)
	if err != nil {
		s.writeBankError(w, err)
		return
	}

	intensity := 0.5
	if latest, err := s.artistic.GetHistory(r.Context(), userID, 1, 0); err == nil && len(latest) > 0 {
		intensity = latest[0].Confidence
	}

	result, err := s.artGen.Generate(r.Context(), artgen.Request{
		EmotionLabel: emotional.DominantLabel,
		StyleLabel:   artistic.DominantLabel,
		Intensity:    intensity,
		Hints:        req.Hints,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "art generation failed")
		return
	}

	art, err := s.db.CreateArtwork(r.Context(), model.Artwork{
		UserID:       userID,
		Title:        result.Title,
		Description:  result.Description,
		EmotionLabel: emotional.DominantLabel,
		StyleLabel:   artistic.DominantLabel,
		Palette:      result.Palette,
	})
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("persist artwork failed")
		writeError(w, http.StatusInternalServerError, "could not store artwork")
		return
	}
	metrics.ArtworksTotal.Inc()

	s.emit(userID, "art_generated", art)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"artwork": art,
		"seed":    result.Seed,
	})
}

// handleGallery lists the user's artworks, most recent first.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	artworks, err := s.db.ListArtworks(r.Context(), userID, limit, offset)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("list artworks failed")
		writeError(w, http.StatusInternalServerError, "could not load gallery")
		return
	}
	if artworks == nil {
		artworks = []model.Artwork{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"artworks": artworks,
		"count":    len(artworks),
	})
}

type generateNarrativeRequest struct {
	ArtworkID string `json:"artwork_id"`
	Voice     string `json:"voice,omitempty"`
}

// handleGenerateNarrative attaches generated narrative text to one of the
// user's artworks.
func (s *Server) handleGenerateNarrative(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req generateNarrativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ArtworkID == "" {
		writeError(w, http.StatusBadRequest, "artwork_id is required")
		return
	}

	art, err := s.db.GetArtwork(r.Context(), req.ArtworkID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artwork not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load artwork")
		return
	}
	if art.UserID != userID {
		writeError(w, http.StatusNotFound, "artwork not found")
		return
	}

	text, err := s.narrative.Generate(r.Context(), narrative.Request{
		Title:        art.Title,
		EmotionLabel: art.EmotionLabel,
		StyleLabel:   art.StyleLabel,
		Style:        req.Voice,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "narrative generation failed")
		return
	}

	if err := s.db.SetArtworkNarrative(r.Context(), art.ID, text); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artwork not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not store narrative")
		return
	}
	art.Narrative = text

	s.emit(userID, "narrative_generated", art)
	writeJSON(w, http.StatusOK, art)
}

// handlePatterns returns both memory domains' pattern aggregates.
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	emotional, err := s.emotional.GetUserPatterns(r.Context(), userID)
	if err != nil {
		s.writeBankError(w, err)
		return
	}
	artistic, err := s.artistic.GetUserPatterns(r.Context(), userID)
	if err != nil {
		s.writeBankError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"emotional": emotional,
		"artistic":  artistic,
	})
}

// handleRecommendations returns ranked label suggestions from both banks.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	topN := queryInt(r, "top_n", 0)

	emotional, err := s.emotional.GetPersonalizedRecommendations(r.Context(), userID, topN)
	if err != nil {
		s.writeBankError(w, err)
		return
	}
	artistic, err := s.artistic.GetPersonalizedRecommendations(r.Context(), userID, topN)
	if err != nil {
		s.writeBankError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"emotional": emotional,
		"artistic":  artistic,
	})
}

// writeBankError maps memory bank errors to HTTP statuses.
func (s *Server) writeBankError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidObservation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrClassificationUnavailable),
		errors.Is(err, model.ErrCapacityExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) emit(userID, eventType string, data interface{}) {
	if s.hub != nil {
		s.hub.Emit(userID, eventType, data)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
