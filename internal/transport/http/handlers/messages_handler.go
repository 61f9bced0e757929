package handlers

import (
	"errors"
	"net/http"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	authsvc "github.com/ebuka-odih/nyem-sub003/internal/services/auth"
	messagesvc "github.com/ebuka-odih/nyem-sub003/internal/services/messages"
	ratesvc "github.com/ebuka-odih/nyem-sub003/internal/services/rate"
	"github.com/ebuka-odih/nyem-sub003/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-sub003/internal/transport/http/errors"
)

const defaultMessagesPage = 50

type MessagesHandler struct {
	service *messagesvc.Service
}

func NewMessagesHandler(service *messagesvc.Service) *MessagesHandler {
	return &MessagesHandler{service: service}
}

func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGES_SERVICE_UNAVAILABLE", "messages service is unavailable")
		return
	}
	conversationID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	query := r.URL.Query()
	limit := parseIntOrDefault(query.Get("limit"), defaultMessagesPage)
	beforeID := parseInt64OrDefault(query.Get("before_id"), 0)

	messages, err := h.service.List(r.Context(), identity.UserID, conversationID, beforeID, limit)
	if err != nil {
		writeMessagesError(w, err, "failed to load messages")
		return
	}

	resp := dto.MessagesResponse{Items: make([]dto.MessageResponse, 0, len(messages))}
	for _, msg := range messages {
		resp.Items = append(resp.Items, mapMessage(msg))
	}
	if limit > 0 && len(messages) == limit {
		oldest := messages[len(messages)-1].ID
		resp.NextBefore = &oldest
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGES_SERVICE_UNAVAILABLE", "messages service is unavailable")
		return
	}
	conversationID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.service.Send(r.Context(), identity.UserID, conversationID, req.Text)
	if err != nil {
		writeMessagesError(w, err, "failed to send message")
		return
	}
	httperrors.Write(w, http.StatusCreated, mapMessage(msg))
}

func writeMessagesError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, messagesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid message request")
	case errors.Is(err, messagesvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "conversation not found")
	case errors.Is(err, messagesvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "not allowed in this conversation")
	default:
		if tf, ok := ratesvc.IsTooFast(err); ok {
			writeTooFast(w, tf.RetryAfter(), "too many messages, slow down")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func mapMessage(msg model.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt,
	}
}
