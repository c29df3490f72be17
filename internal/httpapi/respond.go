package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// respond writes v as JSON, or as a google.protobuf.Value when the client
// asked for protobuf.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsProtobuf(r) {
		writeJSON(w, status, v)
		return
	}
	pv, err := toProtoValue(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeProto(w, status, pv)
}

// decodeBody fills dst from a JSON or protobuf Struct body.
func decodeBody(r *http.Request, dst any) error {
	if isProtobuf(r) {
		return readProtoStruct(r, dst)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps the error taxonomy onto HTTP status codes. Storage
// failures are logged and reported without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var de *types.Error
	msg := err.Error()
	if errors.As(err, &de) {
		msg = de.Message
	}
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", msg)
	case errors.Is(err, types.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", msg)
	case errors.Is(err, types.ErrPermission):
		writeError(w, http.StatusForbidden, "permission_denied", msg)
	case errors.Is(err, types.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", msg)
	case errors.Is(err, types.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid", msg)
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
