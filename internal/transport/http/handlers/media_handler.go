package handlers

import (
	"errors"
	"net/http"
	"strings"

	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
	mediasvc "github.com/ivankudzin/shipyard/internal/services/media"
	"github.com/ivankudzin/shipyard/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/shipyard/internal/transport/http/errors"
)

// multipartOverhead covers form boundaries and the path field on top of the file itself.
const multipartOverhead = 1 << 20

type MediaHandler struct {
	service *mediasvc.Service
	resp    *Responder
}

func NewMediaHandler(service *mediasvc.Service, resp *Responder) *MediaHandler {
	return &MediaHandler{service: service, resp: resp}
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	limit := h.service.MaxBytes() + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		writeBadRequest(w, "File and path are required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	path := strings.TrimSpace(r.FormValue("path"))
	file, header, err := r.FormFile("file")
	if err != nil || path == "" {
		writeBadRequest(w, "File and path are required")
		return
	}
	defer file.Close()

	url, err := h.service.UploadPhoto(r.Context(), identity.UserID, mediasvc.Upload{
		Path:        path,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		switch {
		case errors.Is(err, mediasvc.ErrExists):
			httperrors.WriteError(w, http.StatusConflict, "File already exists")
		case errors.Is(err, mediasvc.ErrTooLarge):
			httperrors.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
		case errors.Is(err, mediasvc.ErrValidation):
			writeBadRequest(w, "Invalid file or path")
		default:
			h.resp.Internal(w, r, "Failed to upload file", err)
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UploadResponse{URL: url})
}
