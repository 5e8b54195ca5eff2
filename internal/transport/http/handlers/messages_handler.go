package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	"github.com/ivankudzin/shipyard/internal/pkg/validate"
	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
	msgsvc "github.com/ivankudzin/shipyard/internal/services/messages"
	"github.com/ivankudzin/shipyard/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/shipyard/internal/transport/http/errors"
)

type MessagesHandler struct {
	service *msgsvc.Service
	resp    *Responder
}

func NewMessagesHandler(service *msgsvc.Service, resp *Responder) *MessagesHandler {
	return &MessagesHandler{service: service, resp: resp}
}

func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	items, err := h.service.List(r.Context(), conversationIDParam(r), identity.UserID)
	if err != nil {
		if errors.Is(err, msgsvc.ErrForbidden) {
			h.resp.Debug("message list denied", zap.Error(err))
			writeForbidden(w)
			return
		}
		h.resp.Internal(w, r, "Failed to fetch messages", err)
		return
	}

	out := make([]dto.MessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, messageResponse(item))
	}
	httperrors.Write(w, http.StatusOK, out)
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Content is required")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, "Content is required")
		return
	}

	msg, err := h.service.Append(r.Context(), conversationIDParam(r), identity.UserID, req.Content)
	if err != nil {
		var rateErr *msgsvc.RateLimitError
		switch {
		case errors.Is(err, msgsvc.ErrTooLong):
			writeBadRequest(w, "Content is too long")
		case errors.Is(err, msgsvc.ErrValidation):
			writeBadRequest(w, "Content is required")
		case errors.Is(err, msgsvc.ErrForbidden):
			h.resp.Debug("message send denied", zap.Error(err))
			writeForbidden(w)
		case errors.As(err, &rateErr):
			writeRateLimited(w, rateErr.RetryAfterSec)
		default:
			h.resp.Internal(w, r, "Failed to send message", err)
		}
		return
	}

	httperrors.Write(w, http.StatusOK, messageResponse(msg))
}

func messageResponse(m model.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
		Sender: dto.MessageSenderResponse{
			DisplayName:     m.Sender.DisplayName,
			PrimaryPhotoURL: m.Sender.PrimaryPhotoURL,
		},
	}
}
