package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/inklet-app/inklet/backend/internal/models"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NoteStore is the slice of note persistence the pipeline needs.
type NoteStore interface {
	GetNotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error)
}

// StyleSource resolves the account's default writing voice.
type StyleSource interface {
	GetUserStyle(ctx context.Context, userID string) (string, error)
}

// Handler exposes the pipeline stages over HTTP. Each endpoint is
// stateless: the caller holds the run state and passes prior stage outputs
// back in. Re-invoking a stage simply regenerates its output; recomputing
// anything downstream is the caller's responsibility.
type Handler struct {
	svc    *Service
	notes  NoteStore
	styles StyleSource
	logger *zap.Logger
}

func NewHandler(svc *Service, notes NoteStore, styles StyleSource, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, notes: notes, styles: styles, logger: logger}
}

// resolveStyle fills an omitted request style from the user's profile,
// falling back to the global default. The stages themselves still treat a
// blank style as a validation error; this keeps that from ever happening
// for well-formed requests.
func (h *Handler) resolveStyle(r *http.Request, requested string) string {
	if s := strings.TrimSpace(requested); s != "" {
		return s
	}
	userID, _ := r.Context().Value("user_id").(string)
	if userID != "" {
		if s, err := h.styles.GetUserStyle(r.Context(), userID); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return models.DefaultStyle
}

func (h *Handler) writeStageError(w http.ResponseWriter, err error) {
	var se *StageError
	if errors.As(err, &se) {
		status := http.StatusBadGateway
		if se.Code == CodeInputValidation {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": se.Reason, "code": se.Code})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

type extractRequest struct {
	NoteIDs []string `json:"note_ids"`
	Style   string   `json:"style"`
}

// Extract runs the first stage: selected notes -> insights.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	notes, err := h.notes.GetNotesByIDs(r.Context(), userID, req.NoteIDs)
	if err != nil {
		h.logger.Error("load notes", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load notes"})
		return
	}

	insight, err := h.svc.Extract(r.Context(), notes, h.resolveStyle(r, req.Style))
	if err != nil {
		h.logger.Warn("extract stage failed", zap.Error(err))
		h.writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

type topicsRequest struct {
	Insight *models.Insight `json:"insight"`
	Style   string          `json:"style"`
}

// Topics runs the second stage: insights -> 5 topic candidates.
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	var req topicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	topics, err := h.svc.ProposeTopics(r.Context(), req.Insight, h.resolveStyle(r, req.Style))
	if err != nil {
		h.logger.Warn("topics stage failed", zap.Error(err))
		h.writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"topics": topics})
}

type articleRequest struct {
	Topic   *models.TopicCandidate `json:"topic"`
	Insight *models.Insight        `json:"insight"`
	Style   string                 `json:"style"`
}

// Article runs the third stage: chosen topic -> full article.
func (h *Handler) Article(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	article, err := h.svc.DraftArticle(r.Context(), req.Topic, req.Insight, h.resolveStyle(r, req.Style))
	if err != nil {
		h.logger.Warn("article stage failed", zap.Error(err))
		h.writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

type cardRequest struct {
	Article *models.Article `json:"article"`
}

// Card runs the final stage: article -> shareable card copy.
func (h *Handler) Card(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	card, err := h.svc.ComposeCard(r.Context(), req.Article)
	if err != nil {
		h.logger.Warn("card stage failed", zap.Error(err))
		h.writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}
