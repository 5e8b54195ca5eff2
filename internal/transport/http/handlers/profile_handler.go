package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/shipyard/internal/pkg/validate"
	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
	profilesvc "github.com/ivankudzin/shipyard/internal/services/profiles"
	"github.com/ivankudzin/shipyard/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/shipyard/internal/transport/http/errors"
)

type ProfileHandler struct {
	service *profilesvc.Service
	resp    *Responder
}

func NewProfileHandler(service *profilesvc.Service, resp *Responder) *ProfileHandler {
	return &ProfileHandler{service: service, resp: resp}
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	h.writeProfile(w, r, identity.UserID)
}

func (h *ProfileHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w)
		return
	}
	h.writeProfile(w, r, strings.TrimSpace(chi.URLParam(r, "id")))
}

func (h *ProfileHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := h.service.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, profilesvc.ErrNotFound) {
			writeNotFound(w, "Profile not found")
			return
		}
		h.resp.Internal(w, r, "Failed to fetch profile", err)
		return
	}
	httperrors.Write(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.SaveProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, "Invalid profile fields")
		return
	}

	profile, err := h.service.Save(r.Context(), identity.UserID, profilesvc.Input{
		DisplayName:     req.DisplayName,
		LocationCity:    req.LocationCity,
		LocationCountry: req.LocationCountry,
		Interests:       req.Interests,
		PrimaryPhotoURL: req.PrimaryPhotoURL,
		ExtraPhotoURLs:  req.ExtraPhotoURLs,
		SummaryIntro:    req.SummaryIntro,
		SummaryOutro:    req.SummaryOutro,
	})
	if err != nil {
		if errors.Is(err, profilesvc.ErrValidation) {
			writeBadRequest(w, "Invalid profile fields")
			return
		}
		h.resp.Internal(w, r, "Failed to save profile", err)
		return
	}

	httperrors.Write(w, http.StatusOK, profile)
}

func (h *ProfileHandler) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.ProfileAnswersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Answers object is required")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, "Answers object is required")
		return
	}

	if err := h.service.SaveAnswers(r.Context(), identity.UserID, req.Answers); err != nil {
		if errors.Is(err, profilesvc.ErrValidation) {
			writeBadRequest(w, "Answers object is required")
			return
		}
		h.resp.Internal(w, r, "Failed to save answers", err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

func (h *ProfileHandler) Answers(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	items, err := h.service.Answers(r.Context(), identity.UserID)
	if err != nil {
		h.resp.Internal(w, r, "Failed to fetch answers", err)
		return
	}

	answers := make(map[string]string, len(items))
	for _, item := range items {
		answers[item.QuestionKey] = item.AnswerText
	}
	httperrors.Write(w, http.StatusOK, dto.ProfileAnswersResponse{Answers: answers})
}

func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	items, err := h.service.Search(r.Context(), profilesvc.SearchQuery{
		Text:    query.Get("q"),
		Country: query.Get("country"),
		City:    query.Get("city"),
	})
	if err != nil {
		h.resp.Internal(w, r, "Failed to search profiles", err)
		return
	}

	out := make([]dto.SearchProfileResponse, 0, len(items))
	for _, p := range items {
		interests := p.Interests
		if interests == nil {
			interests = []string{}
		}
		out = append(out, dto.SearchProfileResponse{
			ID:              p.ID,
			DisplayName:     p.DisplayName,
			PrimaryPhotoURL: p.PrimaryPhotoURL,
			LocationCity:    p.LocationCity,
			LocationCountry: p.LocationCountry,
			Interests:       interests,
		})
	}
	httperrors.Write(w, http.StatusOK, dto.SearchResponse{Profiles: out})
}
