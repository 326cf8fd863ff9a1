package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/pimstore/internal/apperr"
	"github.com/starford/pimstore/internal/entryservice"
	"github.com/starford/pimstore/internal/index"
	"github.com/starford/pimstore/internal/link"
	"github.com/starford/pimstore/internal/store"
	"github.com/starford/pimstore/internal/storeid"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// badRequest lists the errors caused by the caller's input.
var badRequest = []error{
	storeid.ErrInvalidID,
	store.ErrDecode,
	entryservice.ErrSelfLink,
	index.ErrUnknownSort,
	link.ErrMalformedLink,
	link.ErrWrongFieldType,
	link.ErrIDParse,
}

// writeError maps err to a status code. Unknown errors are logged and
// reported as internal.
func writeError(w http.ResponseWriter, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
		return
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}
	slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
