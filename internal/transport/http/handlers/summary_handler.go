package handlers

import (
	"errors"
	"net/http"

	summarysvc "github.com/ivankudzin/shipyard/internal/services/summary"
	"github.com/ivankudzin/shipyard/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/shipyard/internal/transport/http/errors"
)

type SummaryHandler struct {
	service *summarysvc.Service
	resp    *Responder
}

func NewSummaryHandler(service *summarysvc.Service, resp *Responder) *SummaryHandler {
	return &SummaryHandler{service: service, resp: resp}
}

func (h *SummaryHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.resp.Internal(w, r, "Failed to generate summary", errors.New("summary backend is not configured"))
		return
	}

	var req dto.SummarizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Answers and interests are required")
		return
	}

	out, err := h.service.Generate(r.Context(), req.Answers, req.Interests)
	if err != nil {
		if errors.Is(err, summarysvc.ErrValidation) {
			writeBadRequest(w, "Answers and interests are required")
			return
		}
		h.resp.Internal(w, r, "Failed to generate summary", err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SummarizeResponse{
		Intro: out.Intro,
		Outro: out.Outro,
	})
}
