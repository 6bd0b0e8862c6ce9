package game

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	httperrors "github.com/gokatarajesh/numquiz/pkg/http/errors"
)

const qrSize = 320 // mobile-friendly size

// HTTPHandlers provides REST endpoints for room operations.
type HTTPHandlers struct {
	registry      *Registry
	publicBaseURL string
	logger        zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for room endpoints.
func NewHTTPHandlers(registry *Registry, publicBaseURL string, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		registry:      registry,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With().Str("component", "game_http").Logger(),
	}
}

// HandleQRCode handles GET /v1/rooms/{room_id}/qr with a PNG of the join link.
func (h *HTTPHandlers) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	roomID := NormalizeRoomID(r.PathValue("room_id"))
	if roomID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRoomCode, "Room code is required")
		return
	}
	if _, ok := h.registry.Get(roomID); !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeRoomNotFound, "Room not found")
		return
	}

	base := h.publicBaseURL
	if base == "" {
		base = requestBaseURL(r)
	}

	png, err := qrcode.Encode(base+"/join/"+roomID, qrcode.Medium, qrSize)
	if err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID).Msg("qr generation failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeQRCodeFailed, "QR code generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
