package handlers

import (
	"errors"
	"net/http"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	authsvc "github.com/ebuka-odih/nyem-sub003/internal/services/auth"
	ratesvc "github.com/ebuka-odih/nyem-sub003/internal/services/rate"
	swipesvc "github.com/ebuka-odih/nyem-sub003/internal/services/swipes"
	"github.com/ebuka-odih/nyem-sub003/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-sub003/internal/transport/http/errors"
)

type SwipeHandler struct {
	service *swipesvc.Service
}

func NewSwipeHandler(service *swipesvc.Service) *SwipeHandler {
	return &SwipeHandler{service: service}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	direction, ok := enums.ParseSwipeDirection(req.Direction)
	if req.TargetItemID <= 0 || !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "target_item_id and direction (left, right, up) are required")
		return
	}

	result, err := h.service.Record(r.Context(), identity.UserID, req.TargetItemID, direction, req.OfferedItemID)
	if err != nil {
		switch {
		case errors.Is(err, swipesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid swipe request")
		case errors.Is(err, swipesvc.ErrItemNotFound):
			writeNotFound(w, "NOT_FOUND", "item not found")
		case errors.Is(err, swipesvc.ErrForbidden):
			writeForbidden(w, "FORBIDDEN", "swiping on this item is not allowed")
		case errors.Is(err, swipesvc.ErrInvalidOperation):
			httperrors.Write(w, http.StatusUnprocessableEntity, httperrors.APIError{
				Code:    "INVALID_OPERATION",
				Message: "cannot swipe on your own item",
			})
		case errors.Is(err, swipesvc.ErrDuplicateSwipe):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "CONFLICT",
				Message: "item was already swiped",
			})
		default:
			if tf, ok := ratesvc.IsTooFast(err); ok {
				writeTooFast(w, tf.RetryAfter(), "too many swipes, slow down")
				return
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to process swipe")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, mapSwipeResult(result))
}

func mapSwipeResult(result swipesvc.SwipeResult) dto.SwipeResponse {
	resp := dto.SwipeResponse{
		OK:           true,
		SwipeID:      result.Swipe.ID,
		Direction:    string(result.Swipe.Direction),
		Replayed:     result.Replayed,
		Matched:      result.Outcome.Matched,
		MatchCreated: result.Outcome.Created,
	}
	if result.Outcome.Matched {
		matchID := result.Outcome.Match.ID
		resp.MatchID = &matchID
		if result.Outcome.Conversation.ID > 0 {
			convID := result.Outcome.Conversation.ID
			resp.ConversationID = &convID
		}
	}
	if result.MatchErr != nil {
		resp.MatchError = "match detection failed, retry the swipe"
	}
	return resp
}
