package results

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/numquiz/pkg/http/errors"
)

// RecentReader serves results cached after a game finishes.
type RecentReader interface {
	Get(ctx context.Context, roomID string) (*Summary, error)
	Recent(ctx context.Context, limit int) ([]Summary, error)
}

// HistoryReader serves the durable game history.
type HistoryReader interface {
	ListRecent(ctx context.Context, limit int) ([]Summary, error)
}

// HTTPHandler exposes archived results over REST. Either backend may be nil.
type HTTPHandler struct {
	recent  RecentReader
	history HistoryReader
	logger  zerolog.Logger
}

// NewHTTPHandler constructs a results HTTP handler.
func NewHTTPHandler(recent RecentReader, history HistoryReader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		recent:  recent,
		history: history,
		logger:  logger.With().Str("component", "results_http").Logger(),
	}
}

// HandleGet responds with the archived result of one room.
// Route: GET /v1/results/{room_id}
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	if h.recent == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "result archive is not configured")
		return
	}

	roomID := strings.ToUpper(strings.TrimSpace(r.PathValue("room_id")))
	if roomID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRoomCode, "room id required")
		return
	}

	sum, err := h.recent.Get(r.Context(), roomID)
	if errors.Is(err, ErrNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "no finished game for this room")
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("room_id", roomID).Msg("result fetch failed")
		httperrors.RespondInternalError(w, "failed to fetch result")
		return
	}

	writeJSON(w, sum)
}

// HandleRecent lists recently finished games from Redis.
// Route: GET /v1/results?limit=10
func (h *HTTPHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	if h.recent == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "result archive is not configured")
		return
	}

	games, err := h.recent.Recent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Warn().Err(err).Msg("recent results fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeResultsFetchFailed, "failed to fetch results")
		return
	}

	writeJSON(w, map[string]any{
		"games":       games,
		"source":      "redis",
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleHistory lists finished games from Postgres.
// Route: GET /v1/games?limit=10
func (h *HTTPHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	if h.history == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "game history is not configured")
		return
	}

	games, err := h.history.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Warn().Err(err).Msg("game history fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeResultsFetchFailed, "failed to fetch game history")
		return
	}

	writeJSON(w, map[string]any{
		"games":       games,
		"source":      "postgres",
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func parseLimit(r *http.Request) int {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
