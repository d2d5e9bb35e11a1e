package works

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/inklet-app/inklet/backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WorkStore persists saved works.
type WorkStore interface {
	InsertWork(ctx context.Context, w *models.Work) (string, error)
	ListWorksByUser(ctx context.Context, userID string) ([]models.Work, error)
	GetWorkByID(ctx context.Context, id string) (*models.Work, error)
	DeleteWork(ctx context.Context, id string) error
}

// FileStore keeps the rendered markdown export per work.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Handler saves finished pipeline output (article + card) and serves the
// markdown export.
type Handler struct {
	store  WorkStore
	files  FileStore
	logger *zap.Logger
}

func NewHandler(store WorkStore, files FileStore, logger *zap.Logger) *Handler {
	return &Handler{store: store, files: files, logger: logger}
}

type saveRequest struct {
	Style   string                `json:"style"`
	Topic   models.TopicCandidate `json:"topic"`
	Article models.Article        `json:"article"`
	Card    models.CardCopy       `json:"card"`
}

// Save stores the work and uploads its markdown export. A failed upload is
// non-fatal; the work is kept without an export key.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Article.Title == "" || req.Article.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "article title and body are required"})
		return
	}

	work := &models.Work{
		UserID:  userID,
		Style:   req.Style,
		Topic:   req.Topic,
		Article: req.Article,
		Card:    req.Card,
	}

	exportKey := fmt.Sprintf("%s/%s.md", userID, slug(req.Article.Title))
	if err := h.files.Upload(r.Context(), exportKey, renderMarkdown(work), "text/markdown"); err != nil {
		h.logger.Warn("export upload failed", zap.Error(err))
		exportKey = ""
	}
	work.ExportKey = exportKey

	id, err := h.store.InsertWork(r.Context(), work)
	if err != nil {
		h.logger.Error("insert work", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save work"})
		return
	}

	saved, err := h.store.GetWorkByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusCreated, work)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	list, err := h.store.ListWorksByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list works", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}
	if list == nil {
		list = []models.Work{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	work, ok := h.ownedWork(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, work)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	work, ok := h.ownedWork(w, r)
	if !ok {
		return
	}

	if work.ExportKey != "" {
		h.files.Remove(r.Context(), work.ExportKey)
	}
	if err := h.store.DeleteWork(r.Context(), work.ID.Hex()); err != nil {
		h.logger.Error("delete work", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// Export streams the stored markdown render.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	work, ok := h.ownedWork(w, r)
	if !ok {
		return
	}
	if work.ExportKey == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export not available"})
		return
	}

	data, ct, err := h.files.Download(r.Context(), work.ExportKey)
	if err != nil {
		h.logger.Error("download export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "download failed"})
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", "attachment; filename=article.md")
	w.Write(data)
}

// ownedWork loads the work in the path and checks the caller owns it.
func (h *Handler) ownedWork(w http.ResponseWriter, r *http.Request) (*models.Work, bool) {
	userID := r.Context().Value("user_id").(string)
	id := chi.URLParam(r, "id")

	work, err := h.store.GetWorkByID(r.Context(), id)
	if err != nil || work == nil || work.UserID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return nil, false
	}
	return work, true
}

// renderMarkdown produces the shareable export for a saved work.
func renderMarkdown(work *models.Work) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", work.Article.Title)
	if work.Article.Quote != "" {
		fmt.Fprintf(&sb, "> %s\n\n", work.Article.Quote)
	}
	sb.WriteString(work.Article.Body)
	sb.WriteString("\n")
	if work.Card.ReflectiveQuote != "" || work.Card.ActionQuote != "" {
		sb.WriteString("\n---\n\n")
		if work.Card.ReflectiveQuote != "" {
			fmt.Fprintf(&sb, "*%s*\n\n", work.Card.ReflectiveQuote)
		}
		if work.Card.ActionQuote != "" {
			fmt.Fprintf(&sb, "**%s**\n", work.Card.ActionQuote)
		}
	}
	return []byte(sb.String())
}

// slug makes a short, storage-safe object key fragment from a title.
func slug(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	var sb strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('-')
		}
	}
	s := strings.Trim(sb.String(), "-")
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		s = "untitled"
	}
	return s
}
