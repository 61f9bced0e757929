package handlers

import (
	"context"
	"net/http"

	"github.com/ebuka-odih/nyem-sub003/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-sub003/internal/transport/http/errors"
)

type PresenceReader interface {
	Connections(ctx context.Context, userID int64) (int, error)
}

type PresenceHandler struct {
	presence PresenceReader
}

func NewPresenceHandler(presence PresenceReader) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.presence == nil {
		writeInternal(w, "PRESENCE_UNAVAILABLE", "presence is unavailable")
		return
	}
	userID, ok := pathID(r, "user_id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	count, err := h.presence.Connections(r.Context(), userID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load presence")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.PresenceResponse{
		UserID:      userID,
		Online:      count > 0,
		Connections: count,
	})
}
