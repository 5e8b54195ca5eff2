package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	"github.com/ivankudzin/shipyard/internal/pkg/validate"
	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
	convsvc "github.com/ivankudzin/shipyard/internal/services/conversations"
	"github.com/ivankudzin/shipyard/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/shipyard/internal/transport/http/errors"
)

type ConversationsHandler struct {
	service *convsvc.Service
	resp    *Responder
}

func NewConversationsHandler(service *convsvc.Service, resp *Responder) *ConversationsHandler {
	return &ConversationsHandler{service: service, resp: resp}
}

func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	items, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		h.resp.Internal(w, r, "Failed to fetch conversations", err)
		return
	}

	out := make([]dto.ConversationItemResponse, 0, len(items))
	for _, item := range items {
		row := dto.ConversationItemResponse{ID: item.ID}
		if item.Participant != nil {
			participant := participantResponse(*item.Participant)
			row.Participant = &participant
		}
		if item.LastMessage != nil {
			row.LastMessage = &dto.LastMessageResponse{
				Content:   item.LastMessage.Content,
				CreatedAt: item.LastMessage.CreatedAt,
			}
		}
		out = append(out, row)
	}

	httperrors.Write(w, http.StatusOK, out)
}

func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, "Other user ID is required")
		return
	}

	conv, _, err := h.service.CreateOrFind(r.Context(), identity.UserID, req.OtherUserID)
	if err != nil {
		switch {
		case errors.Is(err, convsvc.ErrSelfTarget):
			writeBadRequest(w, "Cannot start conversation with yourself")
		case errors.Is(err, convsvc.ErrUnknownUser):
			writeBadRequest(w, "Unknown user")
		case errors.Is(err, convsvc.ErrValidation):
			writeBadRequest(w, "Invalid other user ID")
		default:
			h.resp.Internal(w, r, "Failed to create conversation", err)
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CreateConversationResponse{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
	})
}

func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	detail, err := h.service.Get(r.Context(), conversationIDParam(r), identity.UserID)
	if err != nil {
		if errors.Is(err, convsvc.ErrForbidden) {
			h.resp.Debug("conversation access denied", zap.Error(err))
			writeForbidden(w)
			return
		}
		h.resp.Internal(w, r, "Failed to fetch conversation", err)
		return
	}

	participants := make([]dto.ParticipantResponse, 0, len(detail.Participants))
	for _, p := range detail.Participants {
		participants = append(participants, participantResponse(p))
	}

	httperrors.Write(w, http.StatusOK, dto.ConversationResponse{
		ID:           detail.ID,
		Participants: participants,
	})
}

func (h *ConversationsHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.AddParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, "User ID is required")
		return
	}

	err := h.service.AddParticipant(r.Context(), conversationIDParam(r), identity.UserID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, convsvc.ErrForbidden):
			h.resp.Debug("conversation access denied", zap.Error(err))
			writeForbidden(w)
		case errors.Is(err, convsvc.ErrUnknownUser):
			writeBadRequest(w, "Unknown user")
		case errors.Is(err, convsvc.ErrValidation):
			writeBadRequest(w, "Invalid user ID")
		default:
			h.resp.Internal(w, r, "Failed to add participant", err)
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

func conversationIDParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

func participantResponse(p model.ProfileSummary) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		ID:              p.ID,
		DisplayName:     p.DisplayName,
		PrimaryPhotoURL: p.PrimaryPhotoURL,
	}
}
