package daily

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/inklet-app/inklet/backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Handler exposes the daily card over HTTP, including a manual trigger
// that shares the scheduled job's idempotent path.
type Handler struct {
	job    *Job
	cards  CardStore
	logger *zap.Logger
}

func NewHandler(job *Job, cards CardStore, logger *zap.Logger) *Handler {
	return &Handler{job: job, cards: cards, logger: logger}
}

// Generate regenerates today's card on demand.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	card, err := h.job.RunOnce(r.Context(), userID, time.Now())
	switch {
	case errors.Is(err, ErrNoNotes):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil && card != nil:
		// Store write failed but the card was computed; hand it back
		// rather than losing the result.
		h.logger.Warn("returning unpersisted daily card", zap.Error(err))
		writeJSON(w, http.StatusOK, card)
	case err != nil:
		h.logger.Error("daily generate failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "daily card generation failed, try again"})
	default:
		writeJSON(w, http.StatusOK, card)
	}
}

// Get returns the stored card for ?date=YYYY-MM-DD (default today).
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(string)

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(models.DateKey)
	}
	if _, err := time.Parse(models.DateKey, date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	card, err := h.cards.GetDailyCard(r.Context(), userID, date)
	if err != nil {
		h.logger.Error("load daily card", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}
	if card == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no card for that date"})
		return
	}
	writeJSON(w, http.StatusOK, card)
}
