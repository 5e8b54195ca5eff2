package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	httperrors "github.com/ivankudzin/shipyard/internal/transport/http/errors"
)

// Responder writes error envelopes and logs server-side failures. Upstream
// error text is copied into `details` only when exposeDetails is set.
type Responder struct {
	log           *zap.Logger
	exposeDetails bool
}

func NewResponder(log *zap.Logger, exposeDetails bool) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Responder{log: log, exposeDetails: exposeDetails}
}

func (rs *Responder) Internal(w http.ResponseWriter, r *http.Request, message string, err error) {
	rs.log.Error(message,
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	payload := httperrors.APIError{Message: message}
	if rs.exposeDetails && err != nil {
		payload.Details = err.Error()
	}
	httperrors.Write(w, http.StatusInternalServerError, payload)
}

func (rs *Responder) Debug(message string, fields ...zap.Field) {
	rs.log.Debug(message, fields...)
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	httperrors.WriteError(w, http.StatusBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter) {
	httperrors.WriteError(w, http.StatusUnauthorized, "Unauthorized")
}

func writeForbidden(w http.ResponseWriter) {
	httperrors.WriteError(w, http.StatusForbidden, "Not a participant")
}

func writeNotFound(w http.ResponseWriter, message string) {
	httperrors.WriteError(w, http.StatusNotFound, message)
}

func writeRateLimited(w http.ResponseWriter, retryAfterSec int64) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
	httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
		Message:       "Too many messages",
		RetryAfterSec: retryAfterSec,
	})
}
